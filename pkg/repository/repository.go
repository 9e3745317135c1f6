package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for rows keyed by a snowflake id.
// Struct filters match on non-zero fields only.
type Repository[T any] interface {
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error)
	Create(ctx context.Context, resource *T) error
	UpdateColumns(ctx context.Context, id snowflake.ID, columns map[string]any) error
}

// Scoped binds a store to db, which may be a transaction.
func Scoped[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}
