// Package engine assembles the billing use cases into command and query buses.
package engine

import (
	"log/slog"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	"cspace/internal/app/handlers/cycles"
	ledgerapp "cspace/internal/app/handlers/ledger"
	"cspace/internal/app/handlers/notify"
	"cspace/internal/app/handlers/payments"
	"cspace/internal/app/handlers/revenue"
	"cspace/internal/app/handlers/settlement"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/middleware"
	"cspace/internal/app/outbox"
	"cspace/internal/app/policies"
	"cspace/internal/app/queries"
	"cspace/internal/app/uow"
)

// Deps are the ports the engine runs on. Optional integrations may be nil.
type Deps struct {
	UoWFactory  uow.UoWFactory
	Outbox      outbox.Outbox
	Idempotency middleware.IdempotencyStore
	Locker      policies.Locker
	LockTTL     time.Duration
	Validator   middleware.Validator

	Gateway    policies.PaymentGateway
	Verifier   policies.WebhookVerifier
	Inbox      policies.Inbox
	Notifier   policies.Notifier
	Mailer     policies.Mailer
	Statements policies.StatementStore

	Currency string
	Logger   *slog.Logger
}

type Engine struct {
	Commands commands.Bus
	Queries  queries.Bus
	Relay    *notify.Relay
	Webhooks *settlement.WebhookIngestor
}

func New(d Deps) *Engine {
	if d.UoWFactory == nil || d.Outbox == nil || d.Idempotency == nil || d.Locker == nil {
		panic("engine: unit of work, outbox, idempotency store and locker are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := handlersupport.Publisher{Outbox: d.Outbox, Encoder: outbox.JSONEventEncoder{}}

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[cycles.CreateCycleCommand, *dto.CycleDetail](cmdBus, cycles.CreateCycleCommand{}.Key(),
		&cycles.CreateCycleHandler{Publisher: pub, Currency: d.Currency, Logger: logger})
	commands.RegisterHandler[cycles.PublishCycleCommand, *dto.CycleDetail](cmdBus, cycles.PublishCycleCommand{}.Key(),
		&cycles.PublishCycleHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[cycles.ReopenCycleCommand, *dto.CycleDetail](cmdBus, cycles.ReopenCycleCommand{}.Key(),
		&cycles.ReopenCycleHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[cycles.DeleteCycleCommand, *cycles.DeleteCycleResult](cmdBus, cycles.DeleteCycleCommand{}.Key(),
		&cycles.DeleteCycleHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[cycles.InspectCycleCommand, *dto.CycleDetail](cmdBus, cycles.InspectCycleCommand{}.Key(),
		&cycles.InspectCycleHandler{Publisher: pub})

	commands.RegisterHandler[payments.AddRecordCommand, *dto.Record](cmdBus, payments.AddRecordCommand{}.Key(),
		&payments.AddRecordHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[payments.UpdateRecordCommand, *dto.Record](cmdBus, payments.UpdateRecordCommand{}.Key(),
		&payments.UpdateRecordHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[payments.BulkUpdateRecordsCommand, *dto.RecordCollection](cmdBus, payments.BulkUpdateRecordsCommand{}.Key(),
		&payments.BulkUpdateRecordsHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[payments.CancelRecordCommand, *dto.Record](cmdBus, payments.CancelRecordCommand{}.Key(),
		&payments.CancelRecordHandler{Publisher: pub, Logger: logger})

	commands.RegisterHandler[settlement.ManualPayCommand, *settlement.Outcome](cmdBus, settlement.ManualPayCommand{}.Key(),
		&settlement.ManualPayHandler{Publisher: pub, Logger: logger})
	commands.RegisterHandler[settlement.InitiateCheckoutCommand, *policies.CheckoutSession](cmdBus, settlement.InitiateCheckoutCommand{}.Key(),
		&settlement.InitiateCheckoutHandler{UoWFactory: d.UoWFactory, Gateway: d.Gateway, Logger: logger})
	commands.RegisterHandler[settlement.HandleGatewaySettlementCommand, *settlement.Outcome](cmdBus, settlement.HandleGatewaySettlementCommand{}.Key(),
		&settlement.GatewaySettlementHandler{Publisher: pub, UoWFactory: d.UoWFactory, Gateway: d.Gateway, Logger: logger})
	commands.RegisterHandler[settlement.ConnectPayoutDestinationCommand, *dto.PayoutDestination](cmdBus, settlement.ConnectPayoutDestinationCommand{}.Key(),
		&settlement.ConnectPayoutDestinationHandler{UoWFactory: d.UoWFactory, Gateway: d.Gateway, Logger: logger})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[cycles.ListCyclesQuery, dto.CycleCollection](queryBus, cycles.ListCyclesQuery{}.Key(),
		&cycles.ListCyclesHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[payments.ListRecordsQuery, dto.RecordCollection](queryBus, payments.ListRecordsQuery{}.Key(),
		&payments.ListRecordsHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[revenue.GetRevenueQuery, dto.Revenue](queryBus, revenue.GetRevenueQuery{}.Key(),
		&revenue.GetRevenueHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[ledgerapp.ListLedgerQuery, dto.LedgerCollection](queryBus, ledgerapp.ListLedgerQuery{}.Key(),
		&ledgerapp.ListLedgerHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[notify.ListNotificationsQuery, dto.NotificationCollection](queryBus, notify.ListNotificationsQuery{}.Key(),
		&notify.ListNotificationsHandler{UoWFactory: d.UoWFactory})

	cmdMiddleware := []middleware.CommandMiddleware{middleware.Logging(logger)}
	queryMiddleware := []middleware.QueryMiddleware{}
	if d.Validator != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.Validation(d.Validator))
		queryMiddleware = append(queryMiddleware, middleware.QueryValidation(d.Validator))
	}
	cmdMiddleware = append(cmdMiddleware,
		middleware.Idempotency(d.Idempotency, nil),
		middleware.Lock(d.Locker, d.LockTTL),
		middleware.OutboxFlush(d.Outbox, logger),
		middleware.Transaction(d.UoWFactory, nil),
	)
	commandBus := middleware.ChainCommands(cmdBus, cmdMiddleware...)

	return &Engine{
		Commands: commandBus,
		Queries:  middleware.ChainQueries(queryBus, queryMiddleware...),
		Relay: &notify.Relay{
			UoWFactory: d.UoWFactory,
			Notifier:   d.Notifier,
			Mailer:     d.Mailer,
			Statements: d.Statements,
			Logger:     logger,
		},
		Webhooks: &settlement.WebhookIngestor{
			Verifier: d.Verifier,
			Inbox:    d.Inbox,
			Commands: commandBus,
			Logger:   logger,
		},
	}
}
