package postgres

import (
	"context"

	"statusboard/internal/storage"
)

func init() {
	// registers the key/value backend factory
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.KV, error) {
		return Open(ctx, cfg.DSN, cfg.TableName())
	})
}
