// Package backend opens the store.Store selected by configuration.
package backend

import (
	"errors"
	"fmt"

	"github.com/Gift-Esethu/Ussd-Server/internal/config"
	"github.com/Gift-Esethu/Ussd-Server/internal/db"
	"github.com/Gift-Esethu/Ussd-Server/internal/db/migrate"
	"github.com/Gift-Esethu/Ussd-Server/internal/store"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/leveldb"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/memstore"
	"github.com/Gift-Esethu/Ussd-Server/internal/store/postgres"
)

// Open returns the backend named by cfg.StoreDriver. For postgres the embedded migrations are
// applied before the store is returned.
func Open(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return memstore.New(), nil
	case config.StoreDriverPostgres:
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return postgres.New(conn), nil
	case config.StoreDriverLevelDB, "":
		ldb, err := leveldb.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return ldb, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
