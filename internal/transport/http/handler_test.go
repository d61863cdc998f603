package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dilldrill/internal/admission"
	"dilldrill/internal/admission/models"
	"dilldrill/internal/admission/policy"
	"dilldrill/internal/admission/store/quota"
	"dilldrill/internal/catalog"
	"dilldrill/internal/entitlement"
	"dilldrill/internal/friction"
	"dilldrill/internal/geo"
	"dilldrill/internal/platform/config"
	"dilldrill/internal/spatial"
)

const metersPerDegreeLat = 111194.9266

var testCenter = geo.Point{Lat: 16.06, Lon: 108.20}

const testOverrideKey = "test-override-signing-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	pois := []catalog.POI{
		{ID: "a", Name: "Alpha", Lat: testCenter.Lat + 10/metersPerDegreeLat, Lon: testCenter.Lon, Images: []string{"alpha.jpg"}},
		{ID: "b", Name: "Bravo", Lat: testCenter.Lat + 50/metersPerDegreeLat, Lon: testCenter.Lon},
		{ID: "c", Name: "Charlie", Lat: testCenter.Lat + 90/metersPerDegreeLat, Lon: testCenter.Lon},
	}
	cat, err := catalog.New(pois)
	require.NoError(t, err)

	limits := map[models.Tier]config.TierLimits{
		models.TierFree: {DailyLimit: 2, ResultCap: 1, RequiresFriction: true},
		models.TierPaid: {DailyLimit: 50, ResultCap: 5},
	}
	engine, err := policy.NewEngine(quota.NewMemoryStore(), limits)
	require.NoError(t, err)

	service, err := admission.NewService(engine, spatial.NewIndex(cat), spatial.NewSelector(30), 100)
	require.NoError(t, err)

	bbox := geo.BBox{108.10, 16.00, 108.30, 16.12}
	handler := NewHandler(service, friction.Static(true), cat, bbox, "test", nil)
	identity := NewIdentityMiddleware(entitlement.NewService(), testOverrideKey, "test", nil)

	srv := httptest.NewServer(NewRouter(handler, identity))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func findNearest(t *testing.T, client *http.Client, url string, body map[string]any) (*http.Response, findNearestResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url+"/api/find-nearest", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out findNearestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestFindNearest_HappyPath(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, out := findNearest(t, client, srv.URL, map[string]any{
		"coordinates":     "16.060, 108.200",
		"turnstile_token": "tok",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, out.Decision)
	assert.Equal(t, models.VerdictAllow, out.Decision.Verdict)
	assert.Equal(t, 1, out.Decision.ChecksUsed)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Alpha", out.Results[0].Name)
	assert.InDelta(t, 10, out.Results[0].DistanceM, 0.5)
	assert.Contains(t, out.Results[0].GoogleMapsLink, "google.com/maps")
	assert.Nil(t, out.Results[0].Lat, "coordinates are opt-in")

	var anonCookie, resultsCookie bool
	for _, c := range resp.Cookies() {
		switch c.Name {
		case cookieAnonID:
			anonCookie = true
			assert.True(t, c.HttpOnly)
		case cookieLastResults:
			resultsCookie = true
		}
	}
	assert.True(t, anonCookie, "anon id cookie must be issued")
	assert.True(t, resultsCookie, "last results cookie must be issued")
}

func TestFindNearest_CoordinatesOptIn(t *testing.T) {
	srv := newTestServer(t)

	_, out := findNearest(t, newClient(t), srv.URL, map[string]any{
		"coordinates":         "16.060, 108.200",
		"turnstile_token":     "tok",
		"include_coordinates": true,
	})

	require.Len(t, out.Results, 1)
	require.NotNil(t, out.Results[0].Lat)
	assert.InDelta(t, testCenter.Lat, *out.Results[0].Lat, 0.01)
}

func TestFindNearest_ChallengeWithoutToken(t *testing.T) {
	srv := newTestServer(t)

	resp, out := findNearest(t, newClient(t), srv.URL, map[string]any{
		"coordinates": "16.060, 108.200",
	})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.VerdictChallengeRequired, out.Decision.Verdict)
	assert.Equal(t, models.FrictionTurnstile, out.Decision.FrictionType)
	assert.Empty(t, out.Results)
}

func TestFindNearest_QuotaExhausted(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	body := map[string]any{"coordinates": "16.060, 108.200", "turnstile_token": "tok"}

	for i := 0; i < 2; i++ {
		resp, _ := findNearest(t, client, srv.URL, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, out := findNearest(t, client, srv.URL, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.VerdictBlock, out.Decision.Verdict)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestFindNearest_PaidTier(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/find-nearest",
		bytes.NewReader([]byte(`{"coordinates":"16.060, 108.200"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: cookieEntitlement, Value: "paid_cus_8842"})

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out findNearestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.TierPaid, out.Decision.Tier)
	assert.Len(t, out.Results, 3, "paid tier is capped at five, catalog has three in range")
}

func TestFindNearest_InvalidInput(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"coordinates":`},
		{"missing longitude", `{"coordinates":"16.060"}`},
		{"latitude out of range", `{"coordinates":"91.0, 108.200"}`},
		{"outside service area", `{"coordinates":"16.060, 109.500"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/find-nearest", "application/json", bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestFindNearest_OverrideToken(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	body := map[string]any{"coordinates": "16.060, 108.200", "turnstile_token": "tok"}

	for i := 0; i < 2; i++ {
		resp, _ := findNearest(t, client, srv.URL, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	token, err := OverrideToken([]byte(testOverrideKey), "ops", time.Minute)
	require.NoError(t, err)

	raw, _ := json.Marshal(map[string]any{"coordinates": "16.060, 108.200"})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/find-nearest", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "override bypasses quota and friction")

	t.Run("forged token is ignored", func(t *testing.T) {
		forged, err := OverrideToken([]byte("wrong-key"), "ops", time.Minute)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/find-nearest", bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+forged)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "quota is already exhausted")
	})
}

func TestDownloadKMZ(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	t.Run("without prior search", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/api/download-kmz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("after a search", func(t *testing.T) {
		resp, _ := findNearest(t, client, srv.URL, map[string]any{
			"coordinates":     "16.060, 108.200",
			"turnstile_token": "tok",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		dl, err := client.Get(srv.URL + "/api/download-kmz")
		require.NoError(t, err)
		defer dl.Body.Close()
		assert.Equal(t, http.StatusOK, dl.StatusCode)
		assert.Equal(t, "application/vnd.google-earth.kmz", dl.Header.Get("Content-Type"))
		assert.Contains(t, dl.Header.Get("Content-Disposition"), "results.kmz")
	})
}

func TestTranslations(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		lang string
		want string
	}{
		{"en", "Find Nearest Projects"},
		{"ru", "Найти проекты"},
		{"xx", "Find Nearest Projects"},
	} {
		t.Run("lang "+tc.lang, func(t *testing.T) {
			resp, err := http.Get(fmt.Sprintf("%s/api/translations?lang=%s", srv.URL, tc.lang))
			require.NoError(t, err)
			defer resp.Body.Close()

			var table map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&table))
			assert.Equal(t, tc.want, table["button_search"])
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
