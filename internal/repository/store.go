package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unclebandit/wacrm-dispatch/internal/config"
	"github.com/unclebandit/wacrm-dispatch/internal/db"
)

// Store bundles the repositories of one storage driver.
type Store struct {
	Campaigns CampaignRepositoryInterface
	Messages  CampaignMessageRepositoryInterface
	Contacts  ContactRepositoryInterface

	// DB is nil for the memory driver.
	DB *sql.DB
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Open builds the repositories for cfg.Driver, connecting and migrating Postgres when needed.
func Open(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return NewMemoryStore().Store(), nil
	case config.DriverPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return NewPostgresStore(conn), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

func NewPostgresStore(conn *sql.DB) *Store {
	return &Store{
		Campaigns: &CampaignRepository{DB: conn},
		Messages:  &CampaignMessageRepository{DB: conn},
		Contacts:  &ContactRepository{DB: conn},
		DB:        conn,
	}
}

// Store exposes the memory repositories through the common bundle.
func (s *MemoryStore) Store() *Store {
	return &Store{
		Campaigns: s.Campaigns(),
		Messages:  s.Messages(),
		Contacts:  s.Contacts(),
	}
}
