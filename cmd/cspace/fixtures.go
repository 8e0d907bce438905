package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cspace/internal/app/handlers/support"
	"cspace/internal/app/uow"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/fault"
)

var defaultFixturesPath = filepath.Join("data", "fixtures.json")

type fixtureFile struct {
	Locations []locationFixture `json:"locations"`
}

type locationFixture struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Currency          string        `json:"currency"`
	ElectricUnitPrice int64         `json:"electric_unit_price"`
	PayoutDestination string        `json:"payout_destination"`
	Admins            []userFixture `json:"admins"`
	Rooms             []roomFixture `json:"rooms"`
}

type roomFixture struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	BasePrice int64         `json:"base_price"`
	Tenants   []userFixture `json:"tenants"`
}

type userFixture struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	PushToken string `json:"push_token"`
}

// seedFixtures imports locations, rooms and users. Locations that already
// exist are left untouched so restarts against a persistent store are safe.
func seedFixtures(ctx context.Context, factory uow.UoWFactory, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var file fixtureFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	for _, fx := range file.Locations {
		err := support.RunInUnit(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
			return importLocation(ctx, unit, fx, now)
		})
		switch {
		case errors.Is(err, fault.ErrDuplicate):
			logger.Debug("fixture location exists", "location_id", fx.ID)
		case err != nil:
			logger.Error("cannot store fixture location", "location_id", fx.ID, "error", err)
		default:
			logger.Info("fixture location imported", "location_id", fx.ID, "rooms", len(fx.Rooms))
		}
	}
	return nil
}

func importLocation(ctx context.Context, unit uow.UnitOfWork, fx locationFixture, now time.Time) error {
	locationID := directory.LocationID(fx.ID)
	if _, err := unit.Locations().ByID(ctx, locationID); err == nil {
		return fault.ErrDuplicate
	} else if !errors.Is(err, fault.ErrNotFound) {
		return err
	}

	location := &directory.Location{
		ID:                locationID,
		Name:              fx.Name,
		Currency:          fx.Currency,
		ElectricUnitPrice: fx.ElectricUnitPrice,
		PayoutDestination: fx.PayoutDestination,
		UpdatedAt:         now,
	}
	for _, admin := range fx.Admins {
		location.AdminIDs = append(location.AdminIDs, directory.UserID(admin.ID))
		if err := unit.Users().Save(ctx, admin.toUser(locationID, directory.RoleAdmin)); err != nil {
			return err
		}
	}
	if err := unit.Locations().Save(ctx, location); err != nil {
		return err
	}

	for _, rf := range fx.Rooms {
		room := &directory.Room{
			ID:         directory.RoomID(rf.ID),
			LocationID: locationID,
			Name:       rf.Name,
			BasePrice:  rf.BasePrice,
			Occupied:   len(rf.Tenants) > 0,
		}
		for _, tenant := range rf.Tenants {
			room.Occupants = append(room.Occupants, directory.UserID(tenant.ID))
			if err := unit.Users().Save(ctx, tenant.toUser(locationID, directory.RoleTenant)); err != nil {
				return err
			}
		}
		if err := unit.Rooms().Save(ctx, room); err != nil {
			return err
		}
	}
	return nil
}

func (u userFixture) toUser(location directory.LocationID, role directory.Role) *directory.User {
	return &directory.User{
		ID:         directory.UserID(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		PushToken:  u.PushToken,
		LocationID: location,
		Role:       role,
	}
}
