package settlement

import (
	"context"
	"log/slog"
	"time"

	"cspace/internal/app/commands"
	"cspace/internal/app/dto"
	handlersupport "cspace/internal/app/handlers/support"
	"cspace/internal/app/middleware"
	"cspace/internal/app/policies"
	"cspace/internal/app/uow"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
)

const connectPayoutKey = "settlement.connect_payout"

// ConnectPayoutDestinationCommand finishes the gateway's OAuth onboarding for a
// location by trading the authorization code for a connected account id.
type ConnectPayoutDestinationCommand struct {
	LocationID string `validate:"required"`
	ActorID    string `validate:"required"`
	Code       string `validate:"required"`
}

func (c ConnectPayoutDestinationCommand) Key() string { return connectPayoutKey }

func (c ConnectPayoutDestinationCommand) LockKey() string { return "location:" + c.LocationID }

func (c ConnectPayoutDestinationCommand) ManagesUnit() bool { return true }

type ConnectPayoutDestinationHandler struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Logger     *slog.Logger
}

func (h *ConnectPayoutDestinationHandler) Handle(ctx context.Context, cmd ConnectPayoutDestinationCommand) (*dto.PayoutDestination, error) {
	if h.Gateway == nil {
		return nil, policies.ErrGatewayDisabled
	}
	if err := h.authorize(ctx, cmd); err != nil {
		return nil, err
	}
	account, err := h.Gateway.ExchangeAuthorizationCode(ctx, cmd.Code)
	if err != nil {
		return nil, fault.External("gateway", err)
	}

	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		location, err := unit.Locations().ByID(ctx, directory.LocationID(cmd.LocationID))
		if err != nil {
			return err
		}
		if err := location.ConnectPayout(account, time.Now()); err != nil {
			return err
		}
		return unit.Locations().Save(ctx, location)
	})
	if err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("payout destination connected", "location_id", cmd.LocationID, "actor_id", cmd.ActorID)
	}
	return &dto.PayoutDestination{LocationID: cmd.LocationID, AccountID: account}, nil
}

// authorize checks that the actor administers the location before the code is spent.
func (h *ConnectPayoutDestinationHandler) authorize(ctx context.Context, cmd ConnectPayoutDestinationCommand) error {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	location, err := unit.Locations().ByID(execCtx, directory.LocationID(cmd.LocationID))
	if err != nil {
		return err
	}
	if !location.IsAdmin(directory.UserID(cmd.ActorID)) {
		return fault.Invalid("settlement: user %s does not administer location %s", cmd.ActorID, cmd.LocationID)
	}
	return nil
}

var _ commands.Handler[ConnectPayoutDestinationCommand, *dto.PayoutDestination] = (*ConnectPayoutDestinationHandler)(nil)
var _ middleware.SelfManagedCommand = ConnectPayoutDestinationCommand{}
