// Package friction verifies human-verification tokens. The policy engine
// only consumes the boolean outcome; verification happens at the edge
// before admission runs.
package friction

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "dilldrill/pkg/errors"
)

// Verifier checks a challenge token for a client. A false result with a nil
// error means the token was rejected; errors are reserved for upstream
// outages.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

const (
	siteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	// mockToken is accepted without an upstream call in development so the
	// full flow can be exercised locally without Cloudflare credentials.
	mockToken = "mock_turnstile_token_for_testing"
)

// TurnstileVerifier validates tokens against Cloudflare Turnstile.
type TurnstileVerifier struct {
	secret      string
	development bool
	endpoint    string
	client      *http.Client
	logger      *slog.Logger
}

type TurnstileOption func(*TurnstileVerifier)

func WithLogger(logger *slog.Logger) TurnstileOption {
	return func(v *TurnstileVerifier) { v.logger = logger }
}

// WithHTTPClient overrides the upstream client, used by tests to point at
// a local server.
func WithHTTPClient(client *http.Client) TurnstileOption {
	return func(v *TurnstileVerifier) { v.client = client }
}

// WithEndpoint overrides the siteverify URL, used by tests.
func WithEndpoint(endpoint string) TurnstileOption {
	return func(v *TurnstileVerifier) { v.endpoint = endpoint }
}

func NewTurnstile(secret, env string, opts ...TurnstileOption) *TurnstileVerifier {
	v := &TurnstileVerifier{
		secret:      secret,
		development: env == "development",
		endpoint:    siteverifyURL,
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if v.development && token == mockToken {
		v.logger.Warn("accepting mock challenge token")
		return true, nil
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build siteverify request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "challenge verification unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Error("siteverify returned unexpected status", "status", resp.StatusCode)
		return false, nil
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "decode siteverify response")
	}
	if !body.Success {
		v.logger.Warn("challenge token rejected", "error_codes", body.ErrorCodes)
	}
	return body.Success, nil
}

// Static is a Verifier with a fixed outcome, used in tests.
type Static bool

func (s Static) Verify(context.Context, string, string) (bool, error) {
	return bool(s), nil
}
