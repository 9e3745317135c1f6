package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storesync/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	Name   string
	Status string
	Note   *string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&widget{}))
	return db
}

func TestStoreFindAndCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := Scoped[widget](db)

	for i, status := range []string{"active", "inactive", "active"} {
		require.NoError(t, store.Create(ctx, &widget{ID: snowflake.ID(i + 1), Name: fmt.Sprintf("w%d", i+1), Status: status}))
	}

	active, err := store.Find(ctx, &widget{Status: "active"}, option.WithOrder("id desc"))
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, snowflake.ID(3), active[0].ID)

	n, err := store.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = store.Count(ctx, &widget{Status: "active"}, option.WithWhere("name <> ?", "w1"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStoreFindOneMissingReturnsNil(t *testing.T) {
	store := Scoped[widget](newTestDB(t))

	got, err := store.FindOne(context.Background(), &widget{ID: 42})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreUpdateColumnsWritesNulls(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := Scoped[widget](db)

	note := "hello"
	require.NoError(t, store.Create(ctx, &widget{ID: 7, Name: "w7", Status: "active", Note: &note}))
	require.NoError(t, store.UpdateColumns(ctx, 7, map[string]any{"note": nil, "status": ""}))

	got, err := store.FindOne(ctx, &widget{ID: 7})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Note)
	assert.Empty(t, got.Status)

	assert.ErrorIs(t, store.UpdateColumns(ctx, 7, nil), ErrNoColumns)
}
