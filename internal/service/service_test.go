package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tellerpos/backend/internal/cache"
	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/reporting"
	"tellerpos/backend/internal/store"
	"tellerpos/backend/internal/store/memory"
	"tellerpos/backend/internal/validation"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc   *Service
	repo  *memory.Store
	clock *testClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewSeeded()
	clock := &testClock{now: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
	svc := New(repo, cache.NoopReportCache{}, Options{Location: time.UTC, Now: clock.Now})
	return fixture{svc: svc, repo: repo, clock: clock}
}

func as(userID string, username string) context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: userID, Username: username})
}

var (
	adminCtx   = as("usr-admin", "admin")
	managerCtx = as("usr-manager", "manager")
	tellerCtx  = as("usr-teller", "teller")
)

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func (f fixture) product(t *testing.T, name string, p string) domain.Product {
	t.Helper()
	created, err := f.svc.CreateProduct(managerCtx, domain.ProductCreateRequest{Name: name, Price: price(p)})
	require.NoError(t, err)
	return created
}

func TestCheckoutTotalEqualsSumOfLines(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Product A", "10")
	b := f.product(t, "Product B", "5")

	resp, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{a.ID: 2, b.ID: 1}})
	require.NoError(t, err)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(25)), "got %s", resp.TotalAmount)
	assert.Equal(t, 3, resp.ItemCount)
	assert.Equal(t, domain.PaymentMethodCash, resp.PaymentMethod)

	txs, err := f.repo.ListTransactions(context.Background(), domain.SalesQuery{TellerID: "usr-teller"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Len(t, txs[0].Items, 2)
	assert.True(t, txs[0].TotalAmount.Equal(txs[0].ItemsTotal()))

	prices := map[string]decimal.Decimal{}
	for _, item := range txs[0].Items {
		prices[item.ProductID] = item.Price
	}
	assert.True(t, prices[a.ID].Equal(decimal.NewFromInt(10)))
	assert.True(t, prices[b.ID].Equal(decimal.NewFromInt(5)))
}

func TestCheckoutFractionalPricesAreExact(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Dime", "0.10")
	b := f.product(t, "Fifth", "0.20")

	resp, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{a.ID: 3, b.ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, "0.50", resp.TotalAmount.StringFixed(2))
}

func TestCheckoutWithMissingProductWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 1, "prd-ghost": 2}})
	require.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	txs, err := f.repo.ListTransactions(context.Background(), domain.SalesQuery{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCheckoutDropsNonPositiveQuantities(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 2, "prd-latte": 0, "prd-bagel": -4}})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "prd-espresso", resp.Items[0].ProductID)
	assert.Equal(t, "5.00", resp.TotalAmount.StringFixed(2))
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 0}})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.svc.Checkout(tellerCtx, domain.CheckoutRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutRejectsUnavailableProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-cheesecake": 1}})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestCheckoutValidatesPaymentMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 1}, PaymentMethod: "barter"})
	verr, ok := validation.AsError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "payment_method")

	resp, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 1}, PaymentMethod: " Card "})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCard, resp.PaymentMethod)
}

func TestCheckoutRequiresTellerRole(t *testing.T) {
	f := newFixture(t)
	cart := domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 1}}

	for _, ctx := range []context.Context{managerCtx, adminCtx, context.Background()} {
		_, err := f.svc.Checkout(ctx, cart)
		assert.ErrorIs(t, err, ErrForbidden)
	}
}

func TestPriceEditDoesNotRewriteHistory(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Product A", "10")

	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{a.ID: 1}})
	require.NoError(t, err)

	_, err = f.svc.UpdateProduct(managerCtx, a.ID, domain.ProductUpdateRequest{Price: price("99.99")})
	require.NoError(t, err)

	txs, err := f.repo.ListTransactions(context.Background(), domain.SalesQuery{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Items[0].Price.Equal(decimal.NewFromInt(10)))
	assert.True(t, txs[0].TotalAmount.Equal(decimal.NewFromInt(10)))
}

func TestUserWithoutProfileFailsEveryGuard(t *testing.T) {
	f := newFixture(t)
	orphan, err := f.repo.CreateUser(context.Background(), domain.User{Username: "orphan", Password: "hash"}, nil)
	require.NoError(t, err)
	actor := domain.Actor{UserID: orphan.User.ID, Username: "orphan"}

	_, ok := f.svc.ResolveRole(context.Background(), actor)
	assert.False(t, ok)
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleTeller} {
		assert.False(t, f.svc.RequireRole(context.Background(), actor, role), "role %s", role)
	}

	ctx := WithActor(context.Background(), actor)
	_, err = f.svc.Dashboard(ctx)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListProducts(ctx, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SalesReport(ctx)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUnknownActorFailsEveryGuard(t *testing.T) {
	f := newFixture(t)
	actor := domain.Actor{UserID: "usr-deleted", Username: "ghost"}

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleTeller} {
		assert.False(t, f.svc.RequireRole(context.Background(), actor, role))
	}
}

func TestRoleIsResolvedFromCurrentProfile(t *testing.T) {
	f := newFixture(t)
	manager := domain.RoleManager

	_, err := f.svc.UpdateUser(adminCtx, "usr-teller", domain.UpdateUserRequest{Role: &manager})
	require.NoError(t, err)

	_, err = f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 1}})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SalesReport(tellerCtx)
	assert.NoError(t, err)
}

func TestRegisterThenAuthenticate(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		Username: "  newteller ",
		Email:    "new@example.com",
		Password: "correct-horse",
		Role:     domain.RoleTeller,
	})
	require.NoError(t, err)
	assert.Equal(t, "newteller", created.User.Username)

	account, err := f.svc.Authenticate(context.Background(), "newteller", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, account.Profile)
	assert.Equal(t, domain.RoleTeller, account.Profile.Role)
	assert.True(t, account.Profile.IsActive)

	_, err = f.svc.Authenticate(context.Background(), "newteller", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(context.Background(), "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidatesEveryField(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		Username: "a b",
		Email:    "not-an-email",
		Password: "short",
		Role:     "superuser",
	})
	verr, ok := validation.AsError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	for _, field := range []string{"username", "email", "password", "role"} {
		assert.Contains(t, verr.Fields, field)
	}

	_, err = f.svc.Register(context.Background(), domain.RegisterRequest{Username: "TELLER", Password: "long-enough", Role: domain.RoleTeller})
	verr, ok = validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "is already taken", verr.Fields["username"])
}

func TestAuthenticateRefusesInactiveAndOrphanAccounts(t *testing.T) {
	f := newFixture(t)
	inactive := false

	_, err := f.svc.UpdateUser(adminCtx, "usr-teller", domain.UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.Authenticate(context.Background(), "teller", "teller12345")
	assert.ErrorIs(t, err, ErrInactiveAccount)

	created, err := f.svc.Register(context.Background(), domain.RegisterRequest{Username: "soon-orphan", Password: "long-enough", Role: domain.RoleTeller})
	require.NoError(t, err)
	_, err = f.repo.CreateUser(context.Background(), domain.User{Username: "bare", Password: created.User.Password}, nil)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(context.Background(), "bare", "long-enough")
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestInactiveProfileStillResolvesRole(t *testing.T) {
	f := newFixture(t)
	inactive := false

	_, err := f.svc.UpdateUser(adminCtx, "usr-teller", domain.UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.True(t, f.svc.RequireRole(context.Background(), domain.Actor{UserID: "usr-teller"}, domain.RoleTeller))
}

func TestUpdateUserValidatesBothHalvesFirst(t *testing.T) {
	f := newFixture(t)
	badRole := domain.Role("owner")
	username := "renamed-teller"

	_, err := f.svc.UpdateUser(adminCtx, "usr-teller", domain.UpdateUserRequest{Username: &username, Role: &badRole})
	verr, ok := validation.AsError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "role")

	account, err := f.svc.GetUser(adminCtx, "usr-teller")
	require.NoError(t, err)
	assert.Equal(t, "teller", account.User.Username)
	assert.Equal(t, domain.RoleTeller, account.Profile.Role)
}

func TestUpdateUserRejectsBadEmail(t *testing.T) {
	f := newFixture(t)
	email := "nope"

	_, err := f.svc.UpdateUser(adminCtx, "usr-teller", domain.UpdateUserRequest{Email: &email})
	verr, ok := validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])

	cleared := ""
	updated, err := f.svc.UpdateUser(adminCtx, "usr-teller", domain.UpdateUserRequest{Email: &cleared})
	require.NoError(t, err)
	assert.Empty(t, updated.User.Email)
}

func TestUpdateUserRepairsOrphan(t *testing.T) {
	f := newFixture(t)
	orphan, err := f.repo.CreateUser(context.Background(), domain.User{Username: "orphan", Password: "hash"}, nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateUser(adminCtx, orphan.User.ID, domain.UpdateUserRequest{})
	verr, ok := validation.AsError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "role")

	teller := domain.RoleTeller
	updated, err := f.svc.UpdateUser(adminCtx, orphan.User.ID, domain.UpdateUserRequest{Role: &teller})
	require.NoError(t, err)
	require.NotNil(t, updated.Profile)
	assert.True(t, updated.Profile.IsActive)
	assert.True(t, f.svc.RequireRole(context.Background(), domain.Actor{UserID: orphan.User.ID}, domain.RoleTeller))
}

func TestIdentityManagementIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListUsers(managerCtx)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetUser(tellerCtx, "usr-admin")
	assert.ErrorIs(t, err, ErrForbidden)

	users, err := f.svc.ListUsers(adminCtx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
	assert.Equal(t, "admin", users[0].User.Username)

	_, err = f.svc.GetUser(adminCtx, "usr-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.EnsureAdmin(context.Background(), "root", "bootstrap-secret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.EnsureAdmin(context.Background(), "root", "bootstrap-secret")
	require.NoError(t, err)
	assert.False(t, created)

	account, err := f.svc.Authenticate(context.Background(), "root", "bootstrap-secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, account.Profile.Role)
}

func TestCatalogIsManagerOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateProduct(tellerCtx, domain.ProductCreateRequest{Name: "Tea", Price: price("1")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CreateProduct(adminCtx, domain.ProductCreateRequest{Name: "Tea", Price: price("1")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.UpdateProduct(tellerCtx, "prd-espresso", domain.ProductUpdateRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateProduct(managerCtx, domain.ProductCreateRequest{Name: "  ", Price: price("-1")})
	verr, ok := validation.AsError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "price")

	_, err = f.svc.CreateProduct(managerCtx, domain.ProductCreateRequest{Name: "Tea"})
	verr, ok = validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "is required", verr.Fields["price"])

	_, err = f.svc.CreateProduct(managerCtx, domain.ProductCreateRequest{Name: "Tea", Price: price("1.005")})
	verr, ok = validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "must have at most 2 decimal places", verr.Fields["price"])

	free, err := f.svc.CreateProduct(managerCtx, domain.ProductCreateRequest{Name: "Tap Water", Price: price("0")})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusAvailable, free.Status)
	assert.Equal(t, "usr-manager", free.CreatedBy)
}

func TestUpdateProductKeepsCreatorAndSupportsRetirement(t *testing.T) {
	f := newFixture(t)
	unavailable := domain.ProductStatusUnavailable
	name := "Double Espresso"

	updated, err := f.svc.UpdateProduct(managerCtx, "prd-espresso", domain.ProductUpdateRequest{Name: &name, Status: &unavailable})
	require.NoError(t, err)
	assert.Equal(t, "Double Espresso", updated.Name)
	assert.Equal(t, "usr-manager", updated.CreatedBy)

	products, err := f.svc.ListProducts(tellerCtx, "")
	require.NoError(t, err)
	for _, p := range products {
		assert.NotEqual(t, "prd-espresso", p.ID)
		assert.Equal(t, domain.ProductStatusAvailable, p.Status)
	}

	_, err = f.svc.UpdateProduct(managerCtx, "prd-missing", domain.ProductUpdateRequest{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListProductsFilters(t *testing.T) {
	f := newFixture(t)

	all, err := f.svc.ListProducts(managerCtx, "")
	require.NoError(t, err)
	unavailable, err := f.svc.ListProducts(managerCtx, domain.ProductStatusUnavailable)
	require.NoError(t, err)
	require.Len(t, unavailable, 1)
	assert.Equal(t, "prd-cheesecake", unavailable[0].ID)
	assert.Greater(t, len(all), len(unavailable))

	tellerView, err := f.svc.ListProducts(tellerCtx, domain.ProductStatusUnavailable)
	require.NoError(t, err)
	assert.Len(t, tellerView, len(all)-1)

	_, err = f.svc.ListProducts(managerCtx, "discontinued")
	_, ok := validation.AsError(err)
	assert.True(t, ok)
}

func TestSalesReportWindowsAreIndependent(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	f.clock.Set(now.AddDate(0, 0, -10))
	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 2}})
	require.NoError(t, err)
	f.clock.Set(now)

	report, err := f.svc.SalesReport(managerCtx)
	require.NoError(t, err)

	week, ok := report.Window(reporting.WindowLast7Days)
	require.True(t, ok)
	assert.Empty(t, week.Rows)

	month, ok := report.Window(reporting.WindowLast30Days)
	require.True(t, ok)
	require.Len(t, month.Rows, 1)
	assert.Equal(t, "teller", month.Rows[0].TellerUsername)
	assert.EqualValues(t, 1, month.Rows[0].TransactionCount)
	assert.True(t, month.Rows[0].TotalSales.Equal(decimal.RequireFromString("5.00")))
}

func TestSalesReportTotalsGrowWithWindowLength(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	for _, daysAgo := range []int{0, 0, 3, 12, 45, 400} {
		f.clock.Set(now.AddDate(0, 0, -daysAgo))
		_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-latte": 1}})
		require.NoError(t, err)
	}
	f.clock.Set(now)

	report, err := f.svc.SalesReport(managerCtx)
	require.NoError(t, err)

	totals := make([]decimal.Decimal, 0, 4)
	counts := make([]int64, 0, 4)
	for _, name := range []string{reporting.WindowToday, reporting.WindowLast7Days, reporting.WindowLast30Days, reporting.WindowAllTime} {
		w, ok := report.Window(name)
		require.True(t, ok)
		total, count := reporting.Totals(w.Rows)
		totals = append(totals, total)
		counts = append(counts, count)
	}
	for i := 1; i < len(totals); i++ {
		assert.True(t, totals[i].GreaterThanOrEqual(totals[i-1]), "window %d total %s < %s", i, totals[i], totals[i-1])
	}
	assert.Equal(t, []int64{2, 3, 4, 6}, counts)
}

func TestTodaySalesIsScopedToTellerAndDay(t *testing.T) {
	f := newFixture(t)
	other, err := f.svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "long-enough", Role: domain.RoleTeller})
	require.NoError(t, err)
	aliceCtx := as(other.User.ID, "alice")
	now := f.clock.Now()

	_, err = f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-water": 3}})
	require.NoError(t, err)
	_, err = f.svc.Checkout(aliceCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-latte": 1}})
	require.NoError(t, err)
	f.clock.Set(now.AddDate(0, 0, -1))
	_, err = f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-latte": 4}})
	require.NoError(t, err)
	f.clock.Set(now)

	today, err := f.svc.TodaySales(tellerCtx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", today.Date)
	assert.EqualValues(t, 1, today.TransactionCount)
	assert.Equal(t, "3.00", today.TotalSales.StringFixed(2))
	require.Len(t, today.Transactions, 1)
	assert.Equal(t, "usr-teller", today.Transactions[0].TellerID)

	_, err = f.svc.TodaySales(managerCtx)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDashboardPerRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-croissant": 2}})
	require.NoError(t, err)

	admin, err := f.svc.Dashboard(adminCtx)
	require.NoError(t, err)
	require.NotNil(t, admin.Admin)
	assert.EqualValues(t, 3, admin.Admin.TotalUsers)
	assert.EqualValues(t, 3, admin.Admin.ActiveUsers)
	assert.Nil(t, admin.Manager)

	manager, err := f.svc.Dashboard(managerCtx)
	require.NoError(t, err)
	require.NotNil(t, manager.Manager)
	assert.Equal(t, "4.40", manager.Manager.DailySales.StringFixed(2))
	assert.Equal(t, "4.40", manager.Manager.TotalSales.StringFixed(2))

	teller, err := f.svc.Dashboard(tellerCtx)
	require.NoError(t, err)
	require.NotNil(t, teller.Teller)
	assert.EqualValues(t, 1, teller.Teller.TodayTransactions)
	assert.Equal(t, "4.40", teller.Teller.TodaySales.StringFixed(2))
}

type recordingCache struct {
	mu      sync.Mutex
	entries map[string]domain.SalesReport
	deleted []string
	failGet bool
}

func (c *recordingCache) Get(_ context.Context, key string) (*domain.SalesReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value *domain.SalesReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *value
	return nil
}

func (c *recordingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func TestCheckoutInvalidatesCachedReport(t *testing.T) {
	repo := memory.NewSeeded()
	clock := &testClock{now: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
	reports := &recordingCache{entries: map[string]domain.SalesReport{}}
	svc := New(repo, reports, Options{Location: time.UTC, Now: clock.Now})

	first, err := svc.SalesReport(managerCtx)
	require.NoError(t, err)
	all, _ := first.Window(reporting.WindowAllTime)
	assert.Empty(t, all.Rows)
	assert.Contains(t, reports.entries, "pos:sales-report:2026-03-10")

	_, err = svc.Checkout(tellerCtx, domain.CheckoutRequest{Cart: domain.Cart{"prd-espresso": 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"pos:sales-report:2026-03-10"}, reports.deleted)

	second, err := svc.SalesReport(managerCtx)
	require.NoError(t, err)
	all, _ = second.Window(reporting.WindowAllTime)
	assert.Len(t, all.Rows, 1)
}

func TestSalesReportSurvivesCacheFailure(t *testing.T) {
	repo := memory.NewSeeded()
	reports := &recordingCache{entries: map[string]domain.SalesReport{}, failGet: true}
	svc := New(repo, reports, Options{Location: time.UTC})

	report, err := svc.SalesReport(managerCtx)
	require.NoError(t, err)
	assert.Len(t, report.Windows, 4)
}
