package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	customerdomain "github.com/smallbiznis/storesync/internal/customer/domain"
	customerrepo "github.com/smallbiznis/storesync/internal/customer/repository"
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/ingestion/repository"
	orderdomain "github.com/smallbiznis/storesync/internal/order/domain"
	orderrepo "github.com/smallbiznis/storesync/internal/order/repository"
	productdomain "github.com/smallbiznis/storesync/internal/product/domain"
	productrepo "github.com/smallbiznis/storesync/internal/product/repository"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/storesync/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/storesync/internal/tenant/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeShop serves queued page bodies per entity type and records the query
// string of every request.
type fakeShop struct {
	mu       sync.Mutex
	pages    map[string][]fakePage
	requests map[string][]map[string]string
}

type fakePage struct {
	status int
	body   string
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		pages:    map[string][]fakePage{},
		requests: map[string][]map[string]string{},
	}
}

func (f *fakeShop) queue(entity string, records ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body := fmt.Sprintf(`{%q:[%s]}`, entity, strings.Join(records, ","))
	f.pages[entity] = append(f.pages[entity], fakePage{status: http.StatusOK, body: body})
}

func (f *fakeShop) queueStatus(entity string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[entity] = append(f.pages[entity], fakePage{status: status, body: `{"errors":"boom"}`})
}

func (f *fakeShop) requestsFor(entity string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.requests[entity]...)
}

func (f *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entity := strings.TrimSuffix(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], ".json")

	f.mu.Lock()
	query := map[string]string{}
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}
	f.requests[entity] = append(f.requests[entity], query)

	var page fakePage
	if queued := f.pages[entity]; len(queued) > 0 {
		page = queued[0]
		f.pages[entity] = queued[1:]
	} else {
		page = fakePage{status: http.StatusOK, body: fmt.Sprintf(`{%q:[]}`, entity)}
	}
	f.mu.Unlock()

	w.WriteHeader(page.status)
	_, _ = w.Write([]byte(page.body))
}

type testEnv struct {
	db      *gorm.DB
	shop    *fakeShop
	clock   *clock.FakeClock
	svc     *Service
	tenants tenantdomain.Service
	tenant  tenantdomain.Tenant
}

type envOption func(*Params)

func withPageSize(size int) envOption {
	return func(p *Params) {
		p.Settings = config.NewStaticSyncSettingsHolder(config.SyncSettings{
			PageSize:    size,
			EntityTypes: []string{"customers", "products", "orders"},
		})
	}
}

func withLock(lock domain.SyncLock) envOption {
	return func(p *Params) { p.Lock = lock }
}

func withLimiter(limiter domain.TriggerLimiter) envOption {
	return func(p *Params) { p.Limiter = limiter }
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&tenantdomain.Tenant{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&productdomain.ProductVariant{},
		&orderdomain.Order{},
		&orderdomain.LineItem{},
		&domain.SyncLog{},
		&domain.SyncCheckpoint{},
	))
	return db
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	shop := newFakeShop()
	srv := httptest.NewServer(shop)
	t.Cleanup(srv.Close)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	cfg := config.Config{Source: config.SourceConfig{APIVersion: "2024-01", BaseURL: srv.URL}}
	tenants, err := tenantservice.New(tenantservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  tenantrepo.Provide(),
		Cfg:   cfg,
		Clock: fakeClock,
	})
	require.NoError(t, err)

	params := Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fakeClock,
		Repo:    repository.Provide(),
		Source:  source.NewClient(cfg, zap.NewNop()),
		Tenants: tenants,
		Writer: NewWriter(WriterParams{
			GenID:     node,
			Clock:     fakeClock,
			Customers: customerrepo.Provide(),
			Products:  productrepo.Provide(),
			Orders:    orderrepo.Provide(),
		}),
	}
	for _, opt := range opts {
		opt(&params)
	}

	tenant, err := tenants.Ensure(context.Background(), tenantdomain.EnsureTenantRequest{
		ShopDomain:  "demo.myshopify.com",
		AccessToken: "shpat_test",
	})
	require.NoError(t, err)

	return &testEnv{
		db:      db,
		shop:    shop,
		clock:   fakeClock,
		svc:     New(params).(*Service),
		tenants: tenants,
		tenant:  tenant,
	}
}

func (e *testEnv) logs(t *testing.T) []domain.SyncLog {
	t.Helper()
	var logs []domain.SyncLog
	require.NoError(t, e.db.Order("id asc").Find(&logs).Error)
	return logs
}

func (e *testEnv) checkpoint(t *testing.T, entity string) *time.Time {
	t.Helper()
	at, err := repository.Provide().GetCheckpoint(context.Background(), e.db, e.tenant.ID, entity)
	require.NoError(t, err)
	return at
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func orderJSON(id int, updatedAt, total string, customerID int) string {
	customer := "null"
	if customerID > 0 {
		customer = fmt.Sprintf(`{"id":%d}`, customerID)
	}
	return fmt.Sprintf(`{"id":%d,"name":"#%d","order_number":%d,"currency":"USD","total_price":%q,"subtotal_price":%q,"total_tax":"0.00","total_discounts":"0.00","updated_at":%q,"customer":%s,"line_items":[{"id":%d,"product_id":1,"variant_id":2,"title":"Item","quantity":1,"price":%q}]}`,
		id, id, id, total, total, updatedAt, customer, id*10, total)
}

func customerJSON(id int, email, updatedAt string) string {
	return fmt.Sprintf(`{"id":%d,"email":%q,"first_name":"Test","total_spent":"0.00","updated_at":%q}`, id, email, updatedAt)
}
