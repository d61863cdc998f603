package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dilldrill/internal/admission/models"
	"dilldrill/internal/entitlement"
)

// Cookie names. The anon id is the quota identity; entitlement carries the
// paid-tier key; lang persists the UI language choice.
const (
	cookieAnonID      = "dd_anon_id"
	cookieEntitlement = "dd_entitlement"
	cookieLang        = "dd_lang"
	cookieLastResults = "dd_last_results"
)

const overrideScope = "quota_override"

// Identity is the per-request resolved caller: anonymous id, tier, and
// whether a trusted override token was presented.
type Identity struct {
	AnonID          string
	Tier            models.Tier
	TrustedOverride bool
	Lang            string
	IP              string
}

type identityKey struct{}

// IdentityFrom returns the identity resolved by the middleware. The zero
// value is returned for requests that bypassed it.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// IdentityMiddleware assigns every client a persistent anonymous id and
// resolves tier and override status before handlers run.
type IdentityMiddleware struct {
	entitlements *entitlement.Service
	// overrideKey signs trusted-override tokens. Empty disables override
	// verification entirely; no token can then grant a bypass.
	overrideKey []byte
	secure      bool
	logger      *slog.Logger
}

func NewIdentityMiddleware(entitlements *entitlement.Service, overrideKey string, env string, logger *slog.Logger) *IdentityMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityMiddleware{
		entitlements: entitlements,
		overrideKey:  []byte(overrideKey),
		secure:       env == "production",
		logger:       logger,
	}
}

func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			Tier: models.TierFree,
			Lang: m.resolveLang(r),
			IP:   clientIP(r),
		}

		if c, err := r.Cookie(cookieAnonID); err == nil && c.Value != "" {
			id.AnonID = c.Value
		} else {
			id.AnonID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     cookieAnonID,
				Value:    id.AnonID,
				MaxAge:   60 * 60 * 24 * 730,
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteStrictMode,
				Path:     "/",
			})
		}

		if c, err := r.Cookie(cookieEntitlement); err == nil {
			id.Tier = m.entitlements.TierFor(c.Value)
		}

		id.TrustedOverride = m.verifyOverride(r)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func (m *IdentityMiddleware) resolveLang(r *http.Request) string {
	if c, err := r.Cookie(cookieLang); err == nil && c.Value != "" {
		return c.Value
	}
	// "ru,en;q=0.9" or "en-US" reduce to the primary subtag.
	accept := r.Header.Get("Accept-Language")
	lang := strings.TrimSpace(strings.Split(strings.Split(accept, ",")[0], "-")[0])
	if i := strings.Index(lang, ";"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return "en"
	}
	return lang
}

// verifyOverride checks the Authorization header for a signed override
// token. Invalid or expired tokens are treated as absent, never as errors;
// a forged token must not change observable behavior beyond a log line.
func (m *IdentityMiddleware) verifyOverride(r *http.Request) bool {
	if len(m.overrideKey) == 0 {
		return false
	}
	auth := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		return false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.overrideKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		m.logger.Warn("rejected override token", "error", err)
		return false
	}
	if scope, _ := claims["scope"].(string); scope != overrideScope {
		m.logger.Warn("override token missing scope")
		return false
	}
	return true
}

// clientIP prefers the first hop of X-Forwarded-For, matching the proxy
// setup in front of the service.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// OverrideToken mints a trusted-override token. Exposed for the operator
// CLI and tests; the service itself only verifies.
func OverrideToken(key []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"scope": overrideScope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	return token.SignedString(key)
}
