package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dilldrill/internal/admission/models"
	"dilldrill/internal/admission/policy"
	"dilldrill/internal/admission/store/quota"
	"dilldrill/internal/catalog"
	"dilldrill/internal/geo"
	"dilldrill/internal/platform/config"
	"dilldrill/internal/spatial"
	"dilldrill/pkg/platform/audit"
)

const metersPerDegreeLat = 111194.9266

type capturePublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *capturePublisher) Emit(_ context.Context, e audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) byAction(action string) []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []audit.Event
	for _, e := range p.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	service *Service
	store   *quota.MemoryStore
	auditor *capturePublisher
	center  geo.Point
	now     time.Time
}

// newFixture builds a service over three POIs due north of the center at
// 10m, 50m, and 90m, all inside the 100m radius and pairwise more than 30m
// apart, so result count is governed by the tier cap alone.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	center := geo.Point{Lat: 16.06, Lon: 108.20}
	pois := []catalog.POI{
		{ID: "a", Name: "Alpha", Lat: center.Lat + 10/metersPerDegreeLat, Lon: center.Lon},
		{ID: "b", Name: "Bravo", Lat: center.Lat + 50/metersPerDegreeLat, Lon: center.Lon},
		{ID: "c", Name: "Charlie", Lat: center.Lat + 90/metersPerDegreeLat, Lon: center.Lon},
	}
	cat, err := catalog.New(pois)
	require.NoError(t, err)

	store := quota.NewMemoryStore()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	limits := map[models.Tier]config.TierLimits{
		models.TierFree: {DailyLimit: 2, ResultCap: 1, RequiresFriction: true},
		models.TierPaid: {DailyLimit: 50, ResultCap: 5},
	}
	engine, err := policy.NewEngine(store, limits, policy.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	auditor := &capturePublisher{}
	service, err := NewService(engine, spatial.NewIndex(cat), spatial.NewSelector(30), 100, WithAudit(auditor))
	require.NoError(t, err)

	return &fixture{service: service, store: store, auditor: auditor, center: center, now: now}
}

func (f *fixture) peek(t *testing.T, prefix string) int {
	t.Helper()
	count, err := f.store.Peek(context.Background(), models.QuotaKey(prefix, f.now, "anon-1"))
	require.NoError(t, err)
	return count
}

func TestNewServiceValidation(t *testing.T) {
	f := newFixture(t)
	engine := f.service.engine

	cat, err := catalog.New([]catalog.POI{{ID: "a", Name: "Alpha", Lat: 16, Lon: 108}})
	require.NoError(t, err)
	index := spatial.NewIndex(cat)
	selector := spatial.NewSelector(30)

	_, err = NewService(nil, index, selector, 100)
	assert.Error(t, err)
	_, err = NewService(engine, nil, selector, 100)
	assert.Error(t, err)
	_, err = NewService(engine, index, nil, 100)
	assert.Error(t, err)
	_, err = NewService(engine, index, selector, 0)
	assert.Error(t, err)
}

func TestSearch_AllowCapsResults(t *testing.T) {
	f := newFixture(t)
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree, FrictionPassed: true, AreaCode: "16.060,108.200"}

	decision, results, err := f.service.Search(context.Background(), rc, f.center)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictAllow, decision.Verdict)
	require.Len(t, results, 1, "free tier returns at most one result")
	assert.Equal(t, "a", results[0].POI.ID, "closest candidate wins")
	assert.Equal(t, 1, f.peek(t, models.KeyPrefixDailyRead), "exactly one unit consumed")
}

func TestSearch_PaidTierGetsMoreResults(t *testing.T) {
	f := newFixture(t)
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierPaid}

	decision, results, err := f.service.Search(context.Background(), rc, f.center)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictAllow, decision.Verdict)
	assert.Len(t, results, 3)
}

func TestSearch_ChallengeReturnsNoResults(t *testing.T) {
	f := newFixture(t)
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree}

	decision, results, err := f.service.Search(context.Background(), rc, f.center)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictChallengeRequired, decision.Verdict)
	assert.Nil(t, results)
	assert.Equal(t, 0, f.peek(t, models.KeyPrefixDailyRead))
}

func TestSearch_BlockReturnsNoResultsAndNoError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree, FrictionPassed: true}

	for i := 0; i < 2; i++ {
		_, _, err := f.service.Search(ctx, rc, f.center)
		require.NoError(t, err)
	}

	decision, results, err := f.service.Search(ctx, rc, f.center)
	require.NoError(t, err, "a denied request is a verdict, not an error")
	assert.Equal(t, models.VerdictBlock, decision.Verdict)
	assert.Nil(t, results)
	assert.Equal(t, 2, f.peek(t, models.KeyPrefixDailyRead))
}

func TestSearch_AuditCarriesAreaCodeOnly(t *testing.T) {
	f := newFixture(t)
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree, FrictionPassed: true, AreaCode: "16.060,108.200"}

	_, _, err := f.service.Search(context.Background(), rc, f.center)
	require.NoError(t, err)

	events := f.auditor.byAction(audit.ActionAdmissionDecision)
	require.Len(t, events, 1)
	assert.Equal(t, "16.060,108.200", events[0].AreaCode)
	assert.Equal(t, string(models.VerdictAllow), events[0].Verdict)
	assert.Empty(t, events[0].Detail, "no precise location in audit events")
}

func TestSearch_OverrideIsAuditedAsSecurityEvent(t *testing.T) {
	f := newFixture(t)
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree, TrustedOverride: true}

	decision, _, err := f.service.Search(context.Background(), rc, f.center)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictAllow, decision.Verdict)

	events := f.auditor.byAction(audit.ActionOverrideUsed)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestSearch_ExhaustionIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree, FrictionPassed: true}

	for i := 0; i < 3; i++ {
		_, _, err := f.service.Search(ctx, rc, f.center)
		require.NoError(t, err)
	}

	assert.Len(t, f.auditor.byAction(audit.ActionQuotaExhausted), 1)
}

func TestAuthorizeExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rc := models.RequestContext{AnonID: "anon-1", Tier: models.TierFree}

	t.Run("allow emits export audit", func(t *testing.T) {
		decision, err := f.service.AuthorizeExport(ctx, rc)
		require.NoError(t, err)
		assert.Equal(t, models.VerdictAllow, decision.Verdict)
		assert.Len(t, f.auditor.byAction(audit.ActionKMZExported), 1)
		assert.Equal(t, 1, f.peek(t, models.KeyPrefixKMZ))
	})

	t.Run("search counter is untouched", func(t *testing.T) {
		assert.Equal(t, 0, f.peek(t, models.KeyPrefixDailyRead))
	})

	t.Run("block emits no export audit", func(t *testing.T) {
		_, err := f.service.AuthorizeExport(ctx, rc)
		require.NoError(t, err)

		decision, err := f.service.AuthorizeExport(ctx, rc)
		require.NoError(t, err)
		assert.Equal(t, models.VerdictBlock, decision.Verdict)
		assert.Len(t, f.auditor.byAction(audit.ActionKMZExported), 2)
	})
}

func TestDistances(t *testing.T) {
	f := newFixture(t)
	pois := []catalog.POI{
		{ID: "a", Name: "Alpha", Lat: f.center.Lat + 10/metersPerDegreeLat, Lon: f.center.Lon},
	}

	out := f.service.Distances(f.center, pois)
	require.Len(t, out, 1)
	assert.InDelta(t, 10, out[0].DistanceM, 0.1)
}
