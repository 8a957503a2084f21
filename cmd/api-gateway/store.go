package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/internal/repository"
	"github.com/noah-isme/event-registration-api/pkg/config"
	"github.com/noah-isme/event-registration-api/pkg/database"
)

// registrationStore is satisfied by both the Postgres and MongoDB repositories.
type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	Exists(ctx context.Context, field models.UniqueField, value string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindByKen(ctx context.Context, ken string) (*models.Registration, error)
	FindByNumberAndContact(ctx context.Context, registrationNumber, contactNumber string) (*models.Registration, error)
	MarkVerified(ctx context.Context, id, verifiedNumber string, verifiedAt time.Time) (bool, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
	Counts(ctx context.Context, filter models.RegistrationFilter) (models.RegistrationCounts, error)
	GroupCount(ctx context.Context, field models.GroupField) ([]models.GroupCount, error)
	Ping(ctx context.Context) error
}

// openStore connects the configured registration store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (registrationStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewRegistrationMongoRepository(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logr.Info("registration store ready", zap.String("driver", cfg.StoreDriver), zap.String("database", cfg.Mongo.Database))
		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logr.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil

	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.RunMigrations(db.DB, logr); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		logr.Info("registration store ready", zap.String("driver", config.StoreDriverPostgres), zap.String("database", cfg.Database.Name))
		return repository.NewRegistrationRepository(db), func() {
			if err := db.Close(); err != nil {
				logr.Warn("postgres close failed", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
