package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/mkrupp/jobhunter/internal/domain"
	context_ "github.com/mkrupp/jobhunter/internal/infra/context"
	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

const (
	TraceIDHeader = "X-Request-ID"
	APIPrefix     = "/api/v1/users"

	maxResponseBytes = 1 << 20
)

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// ServerURL is the base URL of the auth service
	ServerURL string `env:"SERVER_URL" default:"http://localhost:8080"`

	// Timeout bounds each request, including reading the body
	Timeout time.Duration `env:"TIMEOUT" default:"10s"`
}

// HTTPClient implements AuthClient over HTTP. Every request goes through the
// same cookie jar, so the session cookie is sent on each authenticated call.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewJar creates an in-memory cookie jar using the public suffix list.
func NewJar() (http.CookieJar, error) {
	//nolint:exhaustruct
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}

	return jar, nil
}

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If jar is nil, an in-memory jar from NewJar is used.
func NewHTTPClient(cfg HTTPClientConfig, jar http.CookieJar) (*HTTPClient, error) {
	if jar == nil {
		var err error
		if jar, err = NewJar(); err != nil {
			return nil, err
		}
	}

	//nolint:exhaustruct
	return &HTTPClient{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.ServerURL, "/") + APIPrefix,
		log:     logging.GetLogger("svc.authsvc.authclient.http_client"),
		cfg:     cfg,
	}, nil
}

// Jar returns the cookie jar holding the session cookie.
func (hc *HTTPClient) Jar() http.CookieJar {
	return hc.httpClient.Jar
}

// Login implements AuthClient.Login.
func (hc *HTTPClient) Login(ctx context.Context, creds domain.Credentials) error {
	return hc.do(ctx, http.MethodPost, "/login", creds, nil)
}

// CurrentUser implements AuthClient.CurrentUser.
func (hc *HTTPClient) CurrentUser(ctx context.Context) (domain.Identity, error) {
	var identity domain.Identity
	if err := hc.do(ctx, http.MethodGet, "/current-user", nil, &identity); err != nil {
		return domain.Identity{}, err
	}

	return identity, nil
}

// Logout implements AuthClient.Logout.
func (hc *HTTPClient) Logout(ctx context.Context) error {
	return hc.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// Register implements AuthClient.Register.
func (hc *HTTPClient) Register(ctx context.Context, reg domain.Registration) (domain.Identity, error) {
	var identity domain.Identity
	if err := hc.do(ctx, http.MethodPost, "/register", reg, &identity); err != nil {
		return domain.Identity{}, err
	}

	return identity, nil
}

// CompleteOnboarding implements AuthClient.CompleteOnboarding.
func (hc *HTTPClient) CompleteOnboarding(ctx context.Context) (domain.Identity, error) {
	var identity domain.Identity
	if err := hc.do(ctx, http.MethodPost, "/onboarding/complete", nil, &identity); err != nil {
		return domain.Identity{}, err
	}

	return identity, nil
}

func (hc *HTTPClient) do(ctx context.Context, method, path string, in, out any) (err error) {
	log := hc.log.With(logging.Group("http", "method", method, "path", path))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "request failed", "error", err)
		} else {
			log.DebugContext(ctx, "request done")
		}
	}()

	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, hc.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := hc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var envelope domain.APIResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respErr := &ResponseError{StatusCode: resp.StatusCode, Message: envelope.Message}
		if decodeErr == nil && len(envelope.Data) > 0 {
			var fields struct {
				Errors map[string]string `json:"errors"`
			}
			if json.Unmarshal(envelope.Data, &fields) == nil {
				respErr.Fields = fields.Errors
			}
		}

		return respErr
	}

	if out == nil {
		return nil
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if len(envelope.Data) == 0 {
		return fmt.Errorf("decode response: %w", ErrEmptyData)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}

	return nil
}

// ErrEmptyData is returned when a 2xx response lacks the expected data payload.
var ErrEmptyData = errors.New("response has no data")
