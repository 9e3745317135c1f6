package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/pkg/db/option"
	"gorm.io/gorm"
)

var ErrNoColumns = errors.New("no_columns")

type store[T any] struct {
	db *gorm.DB
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	if err := s.query(ctx, filter, opts...).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var result T
	err := s.query(ctx, filter, opts...).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (s *store[T]) Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := s.query(ctx, filter, opts...).Count(&count).Error
	return count, err
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

// UpdateColumns writes columns verbatim, including zero values and NULLs.
func (s *store[T]) UpdateColumns(ctx context.Context, id snowflake.ID, columns map[string]any) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}
	return s.db.WithContext(ctx).
		Model(new(T)).
		Where("id = ?", id).
		Updates(columns).Error
}

func (s *store[T]) query(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	stmt := s.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		stmt = stmt.Where(filter)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
