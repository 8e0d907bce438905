package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/samber/lo"

	"cspace/internal/app/engine"
	"cspace/internal/app/handlers/support"
	"cspace/internal/app/middleware"
	appoutbox "cspace/internal/app/outbox"
	"cspace/internal/app/policies"
	"cspace/internal/app/uow"
	"cspace/internal/domain/directory"
	"cspace/internal/infra/broker/kafka"
	"cspace/internal/infra/config"
	mongostore "cspace/internal/infra/db/mongo"
	"cspace/internal/infra/gateway/stripe"
	ginserver "cspace/internal/infra/http/gin"
	"cspace/internal/infra/inbox"
	redislock "cspace/internal/infra/lock/redis"
	"cspace/internal/infra/notify/email"
	"cspace/internal/infra/notify/firebase"
	"cspace/internal/infra/obs"
	"cspace/internal/infra/outbox"
	"cspace/internal/infra/storage/memory"
	"cspace/internal/infra/storage/s3"
	"cspace/internal/infra/validation"
)

type backgroundJob struct {
	name string
	run  func(ctx context.Context) error
}

type application struct {
	factory    uow.UoWFactory
	handlers   ginserver.Handlers
	background []backgroundJob
	checks     []obs.HealthCheck
	closers    []func(ctx context.Context) error
}

func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}

// storage is the persistence half of the wiring; memory and mongo fill it differently.
type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	inbox       policies.Inbox
	// attach connects committed events to the relay once the engine exists.
	attach func(relay appoutbox.Sink) []backgroundJob
	check  obs.HealthCheck
	close  func(ctx context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{}

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.factory = store.factory
	app.checks = append(app.checks, store.check)
	if store.close != nil {
		app.closers = append(app.closers, store.close)
	}

	var locker policies.Locker = memory.NewLocker()
	if cfg.RedisEnabled() {
		client, err := redislock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, int(cfg.RedisDB))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		app.checks = append(app.checks, obs.HealthCheck{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		locker = redislock.NewLocker(client, "cspace:lock:", logger)
	}

	var gateway policies.PaymentGateway = stripe.Disabled{}
	if cfg.GatewayEnabled() {
		gw, err := stripe.NewGateway(cfg.StripeSecretKey)
		if err != nil {
			return nil, err
		}
		gateway = gw
	}

	deps := engine.Deps{
		UoWFactory:  store.factory,
		Outbox:      store.outbox,
		Idempotency: store.idempotency,
		Locker:      locker,
		LockTTL:     cfg.LockTTL,
		Validator:   validation.New(),
		Gateway:     gateway,
		Verifier:    stripe.NewVerifier(cfg.StripeWebhookSecret),
		Inbox:       store.inbox,
		Currency:    cfg.Currency,
		Logger:      logger,
	}
	if cfg.PushEnabled() {
		notifier, err := firebase.NewNotifier(ctx, firebase.Config{
			CredentialsPath: cfg.FirebaseCredentials,
			ProjectID:       cfg.FirebaseProjectID,
		}, pushTokens(store.factory), logger)
		if err != nil {
			return nil, err
		}
		deps.Notifier = notifier
	}
	if cfg.MailEnabled() {
		deps.Mailer = email.NewMailer(email.Config{
			Host:     cfg.SMTPHost,
			Port:     int(cfg.SMTPPort),
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	if cfg.StatementsEnabled() {
		statements, err := s3.NewClient(s3.Options{
			Endpoint:  cfg.S3Endpoint,
			UseSSL:    cfg.S3UseSSL,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			LinkTTL:   cfg.S3LinkTTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		deps.Statements = statements
	}

	eng := engine.New(deps)
	app.background = store.attach(eng.Relay.Sink())
	app.handlers = ginserver.Handlers{
		Cycles:    ginserver.CycleHandler{Commands: eng.Commands, Queries: eng.Queries, Logger: logger},
		Records:   ginserver.RecordHandler{Commands: eng.Commands, Logger: logger},
		Locations: ginserver.LocationHandler{Commands: eng.Commands, Queries: eng.Queries, Logger: logger},
		Me:        ginserver.MeHandler{Queries: eng.Queries, Logger: logger},
		Webhooks:  ginserver.WebhookHandler{Ingestor: eng.Webhooks, Logger: logger},
	}
	return app, nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.StorageMode == config.StorageMongo {
		return buildMongoStorage(ctx, cfg, logger)
	}
	mem := memory.NewStore()
	box := mem.Outbox()
	return storage{
		factory:     memory.Factory{Store: mem},
		outbox:      box,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:       memory.NewInbox(),
		attach: func(relay appoutbox.Sink) []backgroundJob {
			box.SetSink(relay)
			return nil
		},
		check: obs.HealthCheck{Name: "memory", Probe: func(context.Context) error { return nil }},
	}, nil
}

// buildMongoStorage persists events with the outbox store. A worker delivers
// them to Kafka when brokers are configured and to the relay directly otherwise.
func buildMongoStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo: %w", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		return storage{}, fmt.Errorf("mongo indexes: %w", err)
	}
	box := outbox.NewStore(client.DB)
	st := storage{
		factory:     mongostore.Factory{DB: client.DB},
		outbox:      box,
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		inbox:       inbox.NewStore(client.DB, "gateway-webhooks"),
		check:       obs.HealthCheck{Name: "mongo", Probe: client.Ping},
		close:       client.Close,
	}
	st.attach = func(relay appoutbox.Sink) []backgroundJob {
		worker := &outbox.Worker{
			Store:       box,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		if !cfg.KafkaEnabled() {
			worker.Sink = relay
			return []backgroundJob{{name: "outbox", run: worker.Run}}
		}
		jobs := []backgroundJob{{name: "kafka", run: func(ctx context.Context) error {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, sarama.NewConfig())
			if err != nil {
				return err
			}
			defer producer.Close()
			consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, sarama.NewConfig(), kafka.EventHandler{
				Sink:   relay,
				Inbox:  inbox.NewStore(client.DB, cfg.KafkaConsumerGroup),
				Logger: logger,
			}, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			worker.Producer = producer
			errCh := make(chan error, 2)
			go func() { errCh <- worker.Run(ctx) }()
			go func() { errCh <- consumer.Run(ctx, []string{outbox.TopicFor(cfg.KafkaTopicPrefix, "billing")}) }()
			return errors.Join(<-errCh, <-errCh)
		}}}
		return jobs
	}
	return st, nil
}

// pushTokens resolves device tokens from the user directory.
func pushTokens(factory uow.UoWFactory) firebase.TokenResolver {
	return func(ctx context.Context, userIDs []string) ([]string, error) {
		unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, factory)
		if err != nil {
			return nil, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		ids := lo.Map(userIDs, func(id string, _ int) directory.UserID { return directory.UserID(id) })
		users, err := unit.Users().ByIDs(execCtx, ids)
		if err != nil {
			return nil, err
		}
		return lo.FilterMap(users, func(u *directory.User, _ int) (string, bool) {
			return u.PushToken, u.PushToken != ""
		}), nil
	}
}
