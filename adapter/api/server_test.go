package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingCommands "github.com/hostfolio/hostfolio/internal/billing/application/commands"
	billingServices "github.com/hostfolio/hostfolio/internal/billing/application/services"
	billingDomain "github.com/hostfolio/hostfolio/internal/billing/domain"
	billingPersistence "github.com/hostfolio/hostfolio/internal/billing/infrastructure/persistence"
	listingCommands "github.com/hostfolio/hostfolio/internal/listing/application/commands"
	listingServices "github.com/hostfolio/hostfolio/internal/listing/application/services"
	listingPersistence "github.com/hostfolio/hostfolio/internal/listing/infrastructure/persistence"
	"github.com/hostfolio/hostfolio/internal/notify"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/lock"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(ctx context.Context) error                   { return nil }
func (noopUnitOfWork) Rollback(ctx context.Context) error                 { return nil }

const testSweepToken = "sweep-secret"

type apiFixture struct {
	handler  http.Handler
	listings *listingPersistence.MemoryRepository
	accounts *billingPersistence.MemoryAccountRepository
	coupons  *billingPersistence.MemoryCouponRepository
	invoices *billingPersistence.MemoryInvoiceRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		listings: listingPersistence.NewMemoryRepository(),
		accounts: billingPersistence.NewMemoryAccountRepository(),
		coupons:  billingPersistence.NewMemoryCouponRepository(),
		invoices: billingPersistence.NewMemoryInvoiceRepository(),
	}
	subscriptions := billingPersistence.NewMemorySubscriptionRepository()
	invoices := f.invoices
	plans := billingPersistence.NewStaticPlanRepository(billingPersistence.DefaultPlans)
	tiers, err := billingPersistence.NewStaticTierRepository(billingPersistence.DefaultTiers())
	require.NoError(t, err)

	uow := noopUnitOfWork{}
	outboxRepo := outbox.NewMemoryRepository()
	notifier := notify.NewLogNotifier(nil)

	resolver := billingServices.NewEntitlementResolver(subscriptions, plans, f.accounts, f.listings)
	pricing := billingServices.NewPricingService(tiers, f.coupons)
	sweeper := listingServices.NewTrialSweeper(f.listings, uow, outboxRepo, notifier, lock.NewLocalLease(), nil)

	listingHandler := NewListingHandler(
		listingCommands.NewCreateListingHandler(f.listings, resolver, uow, outboxRepo, nil),
		listingCommands.NewActivateListingHandler(f.listings, uow, outboxRepo, nil),
		nil,
	)
	billingHandler := NewBillingHandler(BillingHandlerConfig{
		Entitlements: resolver,
		Pricing:      pricing,
		RequestPayment: billingCommands.NewRequestPaymentHandler(
			f.listings, subscriptions, invoices, f.coupons, pricing,
			uow, outboxRepo, notifier, "Transfer to IBAN ES12 3456 7890.", nil,
		),
		CancelSub:     billingCommands.NewCancelSubscriptionHandler(subscriptions, uow, outboxRepo, nil),
		ReactivateSub: billingCommands.NewReactivateSubscriptionHandler(subscriptions, uow, outboxRepo, nil),
	})
	sweepHandler := NewSweepHandler(sweeper, testSweepToken, nil)
	reconcileHandler := NewReconcileHandler(
		billingCommands.NewConfirmPaymentHandler(invoices, f.listings, uow, outboxRepo, notifier, nil),
		testSweepToken, nil,
	)

	server := NewServer(DefaultServerConfig(), listingHandler, billingHandler, sweepHandler, reconcileHandler, nil)
	f.handler = server.Handler()
	return f
}

// grantTrial opens the account-level trial window for a host.
func (f *apiFixture) grantTrial(hostID uuid.UUID) {
	ends := time.Now().Add(24 * time.Hour)
	f.accounts.Put(billingDomain.HostAccount{ID: hostID, TrialEndsAt: &ends})
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestCreateListing_API(t *testing.T) {
	f := newAPIFixture(t)
	hostID := uuid.New()
	f.grantTrial(hostID)

	rec := f.do(t, http.MethodPost, "/api/v1/hosts/"+hostID.String()+"/listings",
		map[string]string{"name": "City walking tour"})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "City walking tour", body["name"])
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, hostID.String(), body["host_id"])
}

func TestCreateListing_QuotaExhausted(t *testing.T) {
	f := newAPIFixture(t)
	hostID := uuid.New()
	f.grantTrial(hostID)

	path := "/api/v1/hosts/" + hostID.String() + "/listings"
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, path, map[string]string{"name": fmt.Sprintf("Tour %d", i)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodPost, path, map[string]string{"name": "One too many"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateListing_InvalidHostID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/hosts/not-a-uuid/listings", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivateListing_API(t *testing.T) {
	f := newAPIFixture(t)
	hostID := uuid.New()
	f.grantTrial(hostID)

	rec := f.do(t, http.MethodPost, "/api/v1/hosts/"+hostID.String()+"/listings",
		map[string]string{"name": "First tour"})
	require.Equal(t, http.StatusCreated, rec.Code)
	listingID := decode(t, rec)["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v1/hosts/"+hostID.String()+"/listings/"+listingID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, true, body["is_published"])

	// A second activation of the same listing conflicts.
	rec = f.do(t, http.MethodPost, "/api/v1/hosts/"+hostID.String()+"/listings/"+listingID+"/activate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActivateListing_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost,
		"/api/v1/hosts/"+uuid.NewString()+"/listings/"+uuid.NewString()+"/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEntitlement_API(t *testing.T) {
	f := newAPIFixture(t)
	hostID := uuid.New()
	f.grantTrial(hostID)

	rec := f.do(t, http.MethodGet, "/api/v1/hosts/"+hostID.String()+"/entitlement", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "account_trial", body["source"])
	assert.Equal(t, float64(2), body["max_listings"])
	assert.Equal(t, true, body["can_create_more"])
}

func TestQuote_API(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/quote", map[string]any{
		"host_id":         uuid.New(),
		"listing_count":   3,
		"duration_months": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, 7.50, body["base_amount"])
	assert.Equal(t, 7.50, body["final_amount"])
}

func TestQuote_UnknownCoupon(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/quote", map[string]any{
		"host_id":         uuid.New(),
		"listing_count":   3,
		"duration_months": 1,
		"coupon_code":     "NOPE",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSubscription_NoneActive(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost,
		"/api/v1/hosts/"+uuid.NewString()+"/subscription/cancel", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSweep_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/internal/sweep", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set(SweepTokenHeader, "wrong")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSweep_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	handler := NewSweepHandler(nil, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set(SweepTokenHeader, "")
	rec := httptest.NewRecorder()
	handler.Run(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func (f *apiFixture) doInternal(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(SweepTokenHeader, testSweepToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// trialListing walks a host through create+activate twice and returns the
// second listing's ID, which is in TRIAL (the first one rode free).
func (f *apiFixture) trialListing(t *testing.T, hostID uuid.UUID) string {
	t.Helper()
	var listingID string
	for i, name := range []string{"First tour", "Second tour"} {
		rec := f.do(t, http.MethodPost, "/api/v1/hosts/"+hostID.String()+"/listings",
			map[string]string{"name": name})
		require.Equal(t, http.StatusCreated, rec.Code)
		listingID = decode(t, rec)["id"].(string)

		rec = f.do(t, http.MethodPost,
			"/api/v1/hosts/"+hostID.String()+"/listings/"+listingID+"/activate", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		if i == 1 {
			require.Equal(t, "trial", decode(t, rec)["status"])
		}
	}
	return listingID
}

func TestConfirmPayment_API(t *testing.T) {
	f := newAPIFixture(t)
	hostID := uuid.New()
	f.grantTrial(hostID)
	listingID := f.trialListing(t, hostID)

	rec := f.do(t, http.MethodPost, "/api/v1/billing/payment-requests", map[string]any{
		"host_id":         hostID,
		"listing_ids":     []string{listingID},
		"duration_months": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	reference := decode(t, rec)["reference"].(string)

	rec = f.doInternal(t, "/internal/payments/confirm", map[string]string{"reference": reference})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["listings_activated"])

	listing, err := f.listings.FindByID(context.Background(), uuid.MustParse(listingID))
	require.NoError(t, err)
	assert.True(t, listing.IsPublished())

	// Settling the same invoice twice conflicts.
	rec = f.doInternal(t, "/internal/payments/confirm", map[string]string{"reference": reference})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmPayment_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/internal/payments/confirm",
		map[string]string{"reference": "ITN123-ABCD"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmPayment_UnknownReference(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.doInternal(t, "/internal/payments/confirm",
		map[string]string{"reference": "ITN123-ABCD"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmPayment_MissingReference(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.doInternal(t, "/internal/payments/confirm", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweep_Runs(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set(SweepTokenHeader, testSweepToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result listingServices.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, listingServices.SweepResult{}, result)
}
