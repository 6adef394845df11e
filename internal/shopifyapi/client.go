// Package shopifyapi talks to the Shopify Admin API on behalf of an installed shop.
package shopifyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/fabric-pricing/internal/resilience"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-04"

const (
	accessTokenHeader = "X-Shopify-Access-Token"
	maxResponseBytes  = 1 << 20
)

// Config configures a Client.
type Config struct {
	APIVersion  string
	HTTPClient  *http.Client
	Breaker     *resilience.Breaker
	Timeout     time.Duration
	MaxAttempts int
	// BaseURL maps a shop domain to its origin. Defaults to https://{shop}.
	BaseURL func(shop string) string
}

// Client issues authenticated Admin API requests.
type Client struct {
	http       resilience.HTTPClient
	apiVersion string
	baseURL    func(string) string
}

// NewHTTPClient returns an http.Client traced with OpenTelemetry.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// New constructs a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	baseURL := cfg.BaseURL
	if baseURL == nil {
		baseURL = func(shop string) string { return "https://" + shop }
	}
	return &Client{
		http: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     cfg.Breaker,
			MaxAttempts: cfg.MaxAttempts,
			Timeout:     cfg.Timeout,
			BaseBackoff: 250 * time.Millisecond,
			Jitter:      0.2,
		},
		apiVersion: version,
		baseURL:    baseURL,
	}
}

// APIVersion returns the Admin API version requests are issued against.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// HTTPError reports a non-2xx Admin API response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("shopifyapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// GraphQLError is a single entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLErrors is returned when a response carries top-level GraphQL errors.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return "shopifyapi: graphql: " + strings.Join(msgs, "; ")
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

// GraphQL executes query for shop and decodes the "data" member into out.
func (c *Client) GraphQL(ctx context.Context, shop, accessToken, query string, variables map[string]any, out any) error {
	if shop == "" || accessToken == "" {
		return errors.New("shopifyapi: shop and access token are required")
	}
	ctx, span := otel.Tracer("shopifyapi.Client").Start(ctx, "Client.GraphQL")
	defer span.End()
	span.SetAttributes(attribute.String("shopify.shop", shop), attribute.String("shopify.api_version", c.apiVersion))

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL(shop), c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, accessToken)

	var resp graphQLResponse
	if err := c.do(ctx, req, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}
	if len(resp.Errors) > 0 {
		span.SetStatus(codes.Error, "graphql errors")
		return resp.Errors
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, out)
}

// AccessToken is the result of an OAuth authorization code exchange.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// ExchangeCode trades an OAuth authorization code for an offline access token.
func (c *Client) ExchangeCode(ctx context.Context, shop, clientID, clientSecret, code string) (AccessToken, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
	})
	if err != nil {
		return AccessToken{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(shop)+"/admin/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var token AccessToken
	if err := c.do(ctx, req, &token); err != nil {
		return AccessToken{}, err
	}
	if token.AccessToken == "" {
		return AccessToken{}, errors.New("shopifyapi: access token missing from response")
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("shopifyapi: decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
