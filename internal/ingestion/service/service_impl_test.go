package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	customerdomain "github.com/smallbiznis/storesync/internal/customer/domain"
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	orderdomain "github.com/smallbiznis/storesync/internal/order/domain"
	orderrepo "github.com/smallbiznis/storesync/internal/order/repository"
	productdomain "github.com/smallbiznis/storesync/internal/product/domain"
	productrepo "github.com/smallbiznis/storesync/internal/product/repository"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncOrdersSinglePage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("customers", customerJSON(501, "a@example.com", "2024-04-01T00:00:00Z"))
	_, err := env.svc.Sync(ctx, env.tenant, source.EntityCustomers, domain.TriggerScheduled)
	require.NoError(t, err)

	env.shop.queue("orders",
		orderJSON(1001, "2024-04-02T10:00:00Z", "10.50", 501),
		orderJSON(1002, "2024-04-03T10:00:00Z", "20.00", 0),
		orderJSON(1003, "2024-04-01T10:00:00Z", "30.25", 999),
	)

	result, err := env.svc.Sync(ctx, env.tenant, source.EntityOrders, domain.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, domain.SyncStatusCompleted, result.Status)

	assert.EqualValues(t, 3, count(t, env.db, &orderdomain.Order{}))
	assert.EqualValues(t, 3, count(t, env.db, &orderdomain.LineItem{}))

	linked, err := orderrepo.Provide().FindByExternalID(ctx, env.db, env.tenant.ID, "1001")
	require.NoError(t, err)
	require.NotNil(t, linked)
	require.NotNil(t, linked.CustomerID)
	assert.Equal(t, "10.5", linked.TotalPrice.String())
	require.Len(t, linked.LineItems, 1)

	unknownCustomer, err := orderrepo.Provide().FindByExternalID(ctx, env.db, env.tenant.ID, "1003")
	require.NoError(t, err)
	require.NotNil(t, unknownCustomer)
	assert.Nil(t, unknownCustomer.CustomerID)
	assert.EqualValues(t, 1, count(t, env.db, &customerdomain.Customer{}))

	checkpoint := env.checkpoint(t, "orders")
	require.NotNil(t, checkpoint)
	assert.True(t, checkpoint.Equal(time.Date(2024, 4, 3, 10, 0, 0, 0, time.UTC)))

	logs := env.logs(t)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.SyncStatusCompleted, logs[1].Status)
	assert.Equal(t, 3, logs[1].RecordsProcessed)
	assert.Equal(t, "orders", logs[1].EntityType)
	assert.NotNil(t, logs[1].FinishedAt)
	assert.Nil(t, logs[1].ErrorMessage)

	requests := env.shop.requestsFor("orders")
	require.Len(t, requests, 1)
	assert.Equal(t, "250", requests[0]["limit"])
	_, hasCheckpoint := requests[0]["updated_at_min"]
	assert.False(t, hasCheckpoint)
}

func TestSyncRerunWithEmptyPageKeepsCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("orders", orderJSON(1001, "2024-04-02T10:00:00Z", "10.00", 0))
	_, err := env.svc.Sync(ctx, env.tenant, source.EntityOrders, domain.TriggerScheduled)
	require.NoError(t, err)
	before := env.checkpoint(t, "orders")
	require.NotNil(t, before)

	result, err := env.svc.Sync(ctx, env.tenant, source.EntityOrders, domain.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, domain.SyncStatusCompleted, result.Status)

	after := env.checkpoint(t, "orders")
	require.NotNil(t, after)
	assert.True(t, before.Equal(*after))

	requests := env.shop.requestsFor("orders")
	require.Len(t, requests, 2)
	assert.Equal(t, "2024-04-02T10:00:00Z", requests[1]["updated_at_min"])

	logs := env.logs(t)
	require.Len(t, logs, 2)
	assert.Equal(t, 0, logs[1].RecordsProcessed)
	assert.Equal(t, domain.SyncStatusCompleted, logs[1].Status)
}

func TestSyncIsIdempotentAndLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("customers", customerJSON(7, "old@example.com", "2024-04-05T00:00:00Z"))
	_, err := env.svc.Sync(ctx, env.tenant, source.EntityCustomers, domain.TriggerScheduled)
	require.NoError(t, err)

	var first customerdomain.Customer
	require.NoError(t, env.db.Where("external_id = ?", "7").First(&first).Error)

	env.clock.Advance(time.Hour)
	// Older source timestamp still overwrites: unconditional last write wins.
	env.shop.queue("customers", customerJSON(7, "new@example.com", "2024-04-01T00:00:00Z"))
	_, err = env.svc.Sync(ctx, env.tenant, source.EntityCustomers, domain.TriggerManual)
	require.NoError(t, err)

	var rows []customerdomain.Customer
	require.NoError(t, env.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	got := rows[0]
	assert.Equal(t, first.ID, got.ID)
	require.NotNil(t, got.Email)
	assert.Equal(t, "new@example.com", *got.Email)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))

	checkpoint := env.checkpoint(t, "customers")
	require.NotNil(t, checkpoint)
	assert.True(t, checkpoint.Equal(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)), "checkpoint must not move backwards")
}

func TestSyncPaginatesUntilShortPage(t *testing.T) {
	env := newTestEnv(t, withPageSize(2))
	ctx := context.Background()

	env.shop.queue("customers",
		customerJSON(1, "1@example.com", "2024-04-01T00:00:00Z"),
		customerJSON(2, "2@example.com", "2024-04-02T00:00:00Z"),
	)
	env.shop.queue("customers",
		customerJSON(3, "3@example.com", "2024-04-03T00:00:00Z"),
		customerJSON(4, "4@example.com", "2024-04-04T00:00:00Z"),
	)
	env.shop.queue("customers", customerJSON(5, "5@example.com", "2024-04-02T12:00:00Z"))

	result, err := env.svc.Sync(ctx, env.tenant, source.EntityCustomers, domain.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)

	requests := env.shop.requestsFor("customers")
	require.Len(t, requests, 3)
	assert.Equal(t, "2", requests[0]["limit"])
	_, hasCursor := requests[0]["since_id"]
	assert.False(t, hasCursor)
	assert.Equal(t, "2", requests[1]["since_id"])
	assert.Equal(t, "4", requests[2]["since_id"])

	checkpoint := env.checkpoint(t, "customers")
	require.NotNil(t, checkpoint)
	assert.True(t, checkpoint.Equal(time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC)))
}

func TestSyncStopsOnEmptyPageAfterFullPage(t *testing.T) {
	env := newTestEnv(t, withPageSize(2))

	env.shop.queue("customers",
		customerJSON(1, "1@example.com", "2024-04-01T00:00:00Z"),
		customerJSON(2, "2@example.com", "2024-04-02T00:00:00Z"),
	)

	result, err := env.svc.Sync(context.Background(), env.tenant, source.EntityCustomers, domain.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Len(t, env.shop.requestsFor("customers"), 2)
}

func TestSyncFailureKeepsCheckpointAndRecordsPartialCount(t *testing.T) {
	env := newTestEnv(t, withPageSize(2))
	ctx := context.Background()

	env.shop.queue("customers",
		customerJSON(1, "1@example.com", "2024-04-01T00:00:00Z"),
		customerJSON(2, "2@example.com", "2024-04-02T00:00:00Z"),
	)
	env.shop.queueStatus("customers", http.StatusBadGateway)

	result, err := env.svc.Sync(ctx, env.tenant, source.EntityCustomers, domain.TriggerScheduled)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUpstream)
	assert.Equal(t, domain.SyncStatusFailed, result.Status)
	assert.Equal(t, 2, result.Processed)

	assert.Nil(t, env.checkpoint(t, "customers"))
	assert.EqualValues(t, 2, count(t, env.db, &customerdomain.Customer{}))

	logs := env.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.SyncStatusFailed, logs[0].Status)
	assert.Equal(t, 2, logs[0].RecordsProcessed)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Contains(t, *logs[0].ErrorMessage, "upstream_error")
}

func TestSyncInvalidRecordRollsBackPage(t *testing.T) {
	env := newTestEnv(t)

	bad := `{"id":3,"updated_at":"2024-04-01T00:00:00Z","total_price":"abc"}`
	env.shop.queue("orders", orderJSON(1, "2024-04-01T00:00:00Z", "1.00", 0), bad)

	_, err := env.svc.Sync(context.Background(), env.tenant, source.EntityOrders, domain.TriggerScheduled)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrInvalidDecimal)

	assert.EqualValues(t, 0, count(t, env.db, &orderdomain.Order{}))
	assert.Nil(t, env.checkpoint(t, "orders"))

	logs := env.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.SyncStatusFailed, logs[0].Status)
	assert.Equal(t, 0, logs[0].RecordsProcessed)
}

func TestSyncCheckpointNotAdvancedOnFailureAfterEarlierSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("orders", orderJSON(1, "2024-04-01T00:00:00Z", "1.00", 0))
	_, err := env.svc.Sync(ctx, env.tenant, source.EntityOrders, domain.TriggerScheduled)
	require.NoError(t, err)

	env.shop.queueStatus("orders", http.StatusTooManyRequests)
	_, err = env.svc.Sync(ctx, env.tenant, source.EntityOrders, domain.TriggerScheduled)
	assert.ErrorIs(t, err, source.ErrRateLimited)

	checkpoint := env.checkpoint(t, "orders")
	require.NotNil(t, checkpoint)
	assert.True(t, checkpoint.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSyncProductPrunesRemovedVariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("products", `{"id":10,"title":"Shirt","updated_at":"2024-04-01T00:00:00Z","variants":[{"id":101,"price":"10.00"},{"id":102,"price":"12.00"}]}`)
	_, err := env.svc.Sync(ctx, env.tenant, source.EntityProducts, domain.TriggerScheduled)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count(t, env.db, &productdomain.ProductVariant{}))

	env.shop.queue("products", `{"id":10,"title":"Shirt v2","updated_at":"2024-04-02T00:00:00Z","variants":[{"id":102,"price":"15.00"}]}`)
	_, err = env.svc.Sync(ctx, env.tenant, source.EntityProducts, domain.TriggerScheduled)
	require.NoError(t, err)

	product, err := productrepo.Provide().FindByExternalID(ctx, env.db, env.tenant.ID, "10")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Shirt v2", product.Title)
	assert.Equal(t, "shirt", product.Handle)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, "102", product.Variants[0].ExternalID)
	assert.Equal(t, "15", product.Variants[0].Price.String())
}

func TestSyncProductHandleFromSourceOverwrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("products", `{"id":10,"title":"Shirt","updated_at":"2024-04-01T00:00:00Z","variants":[]}`)
	_, err := env.svc.Sync(ctx, env.tenant, source.EntityProducts, domain.TriggerScheduled)
	require.NoError(t, err)

	env.shop.queue("products", `{"id":10,"title":"Shirt v2","handle":"classic-shirt","updated_at":"2024-04-02T00:00:00Z","variants":[]}`)
	_, err = env.svc.Sync(ctx, env.tenant, source.EntityProducts, domain.TriggerScheduled)
	require.NoError(t, err)

	product, err := productrepo.Provide().FindByExternalID(ctx, env.db, env.tenant.ID, "10")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "classic-shirt", product.Handle)

	env.shop.queue("products", `{"id":10,"title":"Shirt v3","updated_at":"2024-04-03T00:00:00Z","variants":[]}`)
	_, err = env.svc.Sync(ctx, env.tenant, source.EntityProducts, domain.TriggerScheduled)
	require.NoError(t, err)

	product, err = productrepo.Provide().FindByExternalID(ctx, env.db, env.tenant.ID, "10")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Shirt v3", product.Title)
	assert.Equal(t, "classic-shirt", product.Handle)
}

func TestSyncPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Sync(ctx, env.tenant, "carts", domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrInvalidEntityType)

	noCredential := env.tenant
	noCredential.AccessToken = nil
	_, err = env.svc.Sync(ctx, noCredential, source.EntityOrders, domain.TriggerManual)
	assert.ErrorIs(t, err, tenantdomain.ErrMissingCredential)

	assert.Empty(t, env.logs(t))
}

type heldLock struct{}

func (heldLock) TryLockSync(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (heldLock) ReleaseSync(context.Context, string, string, string) error { return nil }

func TestSyncReturnsInProgressWhenLockHeld(t *testing.T) {
	env := newTestEnv(t, withLock(heldLock{}))

	_, err := env.svc.Sync(context.Background(), env.tenant, source.EntityOrders, domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Empty(t, env.logs(t))
	assert.Empty(t, env.shop.requestsFor("orders"))
}

func TestTriggerRunsRequestedEntitiesInDependencyOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("customers", customerJSON(501, "a@example.com", "2024-04-01T00:00:00Z"))
	env.shop.queue("orders", orderJSON(1, "2024-04-01T00:00:00Z", "1.00", 501))
	env.shop.queueStatus("products", http.StatusInternalServerError)

	resp, err := env.svc.Trigger(ctx, domain.TriggerRequest{
		TenantID:    env.tenant.ID.String(),
		EntityTypes: []string{"orders", "customers", "products"},
	})
	require.NoError(t, err)
	require.Len(t, resp, 3)
	assert.Equal(t, domain.EntityResult{Success: true, Processed: 1}, resp["customers"])
	assert.Equal(t, domain.EntityResult{Success: true, Processed: 1}, resp["orders"])
	assert.False(t, resp["products"].Success)
	assert.Contains(t, resp["products"].Error, "upstream_error")

	linked, err := orderrepo.Provide().FindByExternalID(ctx, env.db, env.tenant.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.NotNil(t, linked.CustomerID, "customers must sync before orders")

	for _, log := range env.logs(t) {
		assert.Equal(t, domain.TriggerManual, log.Trigger)
	}
}

func TestTriggerPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Trigger(ctx, domain.TriggerRequest{TenantID: "not-a-number"})
	assert.ErrorIs(t, err, domain.ErrInvalidTenantID)

	_, err = env.svc.Trigger(ctx, domain.TriggerRequest{TenantID: "42"})
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)

	_, err = env.svc.Trigger(ctx, domain.TriggerRequest{TenantID: env.tenant.ID.String(), EntityTypes: []string{"carts"}})
	assert.ErrorIs(t, err, domain.ErrInvalidEntityType)

	bare, err := env.tenants.Ensure(ctx, tenantdomain.EnsureTenantRequest{ShopDomain: "bare.myshopify.com"})
	require.NoError(t, err)
	_, err = env.svc.Trigger(ctx, domain.TriggerRequest{TenantID: bare.ID.String()})
	assert.ErrorIs(t, err, tenantdomain.ErrMissingCredential)

	assert.Empty(t, env.logs(t))
}

type denyLimiter struct{}

func (denyLimiter) AllowTrigger(context.Context, string) (bool, time.Duration, error) {
	return false, 5 * time.Second, nil
}

func TestTriggerRateLimited(t *testing.T) {
	env := newTestEnv(t, withLimiter(denyLimiter{}))

	_, err := env.svc.Trigger(context.Background(), domain.TriggerRequest{TenantID: env.tenant.ID.String()})
	assert.ErrorIs(t, err, domain.ErrTriggerRateLimited)
	assert.Empty(t, env.logs(t))
}

func TestListLogsMostRecentFirstWithLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.Sync(ctx, env.tenant, source.EntityCustomers, domain.TriggerScheduled)
		require.NoError(t, err)
		env.clock.Advance(time.Minute)
	}

	resp, err := env.svc.ListLogs(ctx, domain.ListLogsRequest{TenantID: env.tenant.ID.String(), Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Logs, 2)
	assert.True(t, resp.HasMore)
	assert.NotEmpty(t, resp.NextPageToken)
	assert.True(t, resp.Logs[0].StartedAt.After(resp.Logs[1].StartedAt))

	next, err := env.svc.ListLogs(ctx, domain.ListLogsRequest{TenantID: env.tenant.ID.String(), Limit: 2, PageToken: resp.NextPageToken})
	require.NoError(t, err)
	require.Len(t, next.Logs, 1)
	assert.False(t, next.HasMore)
	assert.Empty(t, next.NextPageToken)

	all, err := env.svc.ListLogs(ctx, domain.ListLogsRequest{TenantID: env.tenant.ID.String(), Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, all.Logs, 3)
}

func TestListCheckpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.shop.queue("orders", orderJSON(1, "2024-04-01T00:00:00Z", "1.00", 0))
	env.shop.queue("customers", customerJSON(1, "a@example.com", "2024-03-01T00:00:00Z"))
	_, err := env.svc.Trigger(ctx, domain.TriggerRequest{TenantID: env.tenant.ID.String()})
	require.NoError(t, err)

	checkpoints, err := env.svc.ListCheckpoints(ctx, env.tenant.ID.String())
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, "customers", checkpoints[0].EntityType)
	assert.Equal(t, "orders", checkpoints[1].EntityType)

	_, err = env.svc.ListCheckpoints(ctx, "42")
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
}
