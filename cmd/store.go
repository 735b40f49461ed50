package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "proposal-eval.db"
		}
		return store.NewSQLite(dsn)
	case config.DriverPostgres:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case config.DriverMemory:
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// readDataset loads a JSON dataset file.
func readDataset(path string) (model.Dataset, error) {
	var ds model.Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, eris.Wrapf(err, "read dataset %s", path)
	}
	if err := json.Unmarshal(data, &ds); err != nil {
		return ds, eris.Wrapf(err, "parse dataset %s", path)
	}
	return ds, nil
}
