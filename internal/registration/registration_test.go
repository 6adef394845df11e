package registration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fabric-pricing/internal/common"
	"github.com/noah-isme/fabric-pricing/internal/registration"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
	"github.com/noah-isme/fabric-pricing/internal/shopifyapi"
)

var session = shopauth.Session{
	ID:          shopauth.OfflineSessionID("demo.myshopify.com"),
	Shop:        "demo.myshopify.com",
	AccessToken: "shpat_abc",
}

type adminAPI struct {
	mu       sync.Mutex
	requests []map[string]any
	respond  func(query string) (int, string)
}

func (a *adminAPI) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/api/2024-04/graphql.json", r.URL.Path)
		require.Equal(t, "shpat_abc", r.Header.Get("X-Shopify-Access-Token"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		a.mu.Lock()
		a.requests = append(a.requests, body)
		a.mu.Unlock()
		status, payload := a.respond(body["query"].(string))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client(srv *httptest.Server) *shopifyapi.Client {
	return shopifyapi.New(shopifyapi.Config{
		APIVersion: "2024-04",
		HTTPClient: srv.Client(),
		BaseURL:    func(string) string { return srv.URL },
	})
}

func TestCartTransformRegistrarOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		payload string
		outcome registration.Outcome
		wantErr bool
	}{
		{
			name:    "created",
			status:  http.StatusOK,
			payload: `{"data":{"cartTransformCreate":{"cartTransform":{"id":"gid://shopify/CartTransform/1","functionId":"fn-1"},"userErrors":[]}}}`,
			outcome: registration.OutcomeRegistered,
		},
		{
			name:    "already registered",
			status:  http.StatusOK,
			payload: `{"data":{"cartTransformCreate":{"cartTransform":null,"userErrors":[{"field":["functionId"],"message":"Could not enable cart transform because it is already registered","code":"FUNCTION_ALREADY_REGISTERED"}]}}}`,
			outcome: registration.OutcomeAlreadyRegistered,
		},
		{
			name:    "function missing",
			status:  http.StatusOK,
			payload: `{"data":{"cartTransformCreate":{"cartTransform":null,"userErrors":[{"field":["functionId"],"message":"Function not found.","code":"FUNCTION_NOT_FOUND"}]}}}`,
			outcome: registration.OutcomeFailed,
			wantErr: true,
		},
		{
			name:    "access denied",
			status:  http.StatusOK,
			payload: `{"errors":[{"message":"Access denied for cartTransformCreate field. Required access: write_cart_transforms"}]}`,
			outcome: registration.OutcomeFailed,
			wantErr: true,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			payload: `{"errors":"[API] Invalid API key or access token"}`,
			outcome: registration.OutcomeFailed,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &adminAPI{respond: func(string) (int, string) { return tc.status, tc.payload }}
			srv := api.server(t)
			reg := registration.CartTransformRegistrar{Client: client(srv), FunctionID: "fn-1"}

			outcome, err := reg.Register(context.Background(), session)
			require.Equal(t, tc.outcome, outcome)
			if tc.wantErr {
				var appErr *common.AppError
				require.ErrorAs(t, err, &appErr)
				require.Equal(t, common.CodePlatformAPI, appErr.Code)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, api.requests, 1)
			require.Equal(t, map[string]any{"functionId": "fn-1"}, api.requests[0]["variables"])
		})
	}
}

func TestCartTransformRegistrarDisabledWithoutFunctionID(t *testing.T) {
	outcome, err := registration.CartTransformRegistrar{}.Register(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, registration.OutcomeDisabled, outcome)
}

func TestWebhookRegistrar(t *testing.T) {
	api := &adminAPI{respond: func(string) (int, string) {
		return http.StatusOK, `{"data":{"webhookSubscriptionCreate":{"webhookSubscription":null,"userErrors":[{"field":["webhookSubscription","callbackUrl"],"message":"Address for this topic has already been taken"}]}}}`
	}}
	srv := api.server(t)
	reg := registration.WebhookRegistrar{
		Client:      client(srv),
		CallbackURL: "https://app.example.com/webhooks",
		Topics:      []string{"APP_UNINSTALLED"},
	}

	outcome, err := reg.Register(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, registration.OutcomeAlreadyRegistered, outcome)

	vars := api.requests[0]["variables"].(map[string]any)
	require.Equal(t, "APP_UNINSTALLED", vars["topic"])
	require.Equal(t, "https://app.example.com/webhooks", vars["webhookSubscription"].(map[string]any)["callbackUrl"])
}

type blockingTask struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingTask) Kind() string { return "blocking" }

func (b *blockingTask) Register(context.Context, shopauth.Session) (registration.Outcome, error) {
	<-b.release
	b.calls.Add(1)
	return registration.OutcomeRegistered, nil
}

func TestDispatcherDoesNotBlockCaller(t *testing.T) {
	task := &blockingTask{release: make(chan struct{})}
	d := registration.NewDispatcher(zerolog.Nop(), 0, task)

	returned := make(chan struct{})
	go func() {
		d.AfterAuth(context.Background(), session)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("AfterAuth waited for the registration")
	}
	require.EqualValues(t, 0, task.calls.Load())

	close(task.release)
	d.Wait()
	require.EqualValues(t, 1, task.calls.Load())
}

func TestDispatcherHangingTaskDoesNotDelayOthers(t *testing.T) {
	hanging := &blockingTask{release: make(chan struct{})}
	finished := make(chan struct{})
	d := registration.NewDispatcher(zerolog.Nop(), 0,
		hanging,
		funcTask{kind: "webhook_subscription", fn: func() (registration.Outcome, error) {
			close(finished)
			return registration.OutcomeRegistered, nil
		}},
	)

	d.AfterAuth(context.Background(), session)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("second task waited for the first")
	}
	require.EqualValues(t, 0, hanging.calls.Load())

	close(hanging.release)
	d.Wait()
	require.EqualValues(t, 1, hanging.calls.Load())
}

type funcTask struct {
	kind string
	fn   func() (registration.Outcome, error)
}

func (f funcTask) Kind() string { return f.kind }

func (f funcTask) Register(context.Context, shopauth.Session) (registration.Outcome, error) {
	return f.fn()
}

func TestDispatcherContainsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf))
	var ran atomic.Int32

	d := registration.NewDispatcher(logger, time.Second,
		funcTask{kind: "boom", fn: func() (registration.Outcome, error) { panic("unexpected") }},
		funcTask{kind: "fails", fn: func() (registration.Outcome, error) {
			return registration.OutcomeRegistered, common.PlatformAPIError(errors.New("upstream 500"))
		}},
		funcTask{kind: "ok", fn: func() (registration.Outcome, error) {
			ran.Add(1)
			return registration.OutcomeRegistered, nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	d.AfterAuth(ctx, session)
	cancel()
	d.Wait()

	require.EqualValues(t, 1, ran.Load(), "other tasks still run when one fails")
	logs := buf.String()
	require.Contains(t, logs, `"kind":"boom"`)
	require.Contains(t, logs, `"kind":"fails"`)
	require.Contains(t, logs, "registration failed")
	require.Contains(t, logs, "registration completed")
}

func TestDispatcherEndToEnd(t *testing.T) {
	api := &adminAPI{respond: func(query string) (int, string) {
		if bytes.Contains([]byte(query), []byte("cartTransformCreate")) {
			return http.StatusOK, `{"data":{"cartTransformCreate":{"cartTransform":{"id":"gid://1","functionId":"fn-1"},"userErrors":[]}}}`
		}
		return http.StatusOK, `{"data":{"webhookSubscriptionCreate":{"webhookSubscription":{"id":"gid://2"},"userErrors":[]}}}`
	}}
	srv := api.server(t)
	c := client(srv)
	d := registration.NewDispatcher(zerolog.Nop(), 0,
		registration.WebhookRegistrar{Client: c, CallbackURL: "https://app.example.com/webhooks", Topics: []string{"APP_UNINSTALLED"}},
		registration.CartTransformRegistrar{Client: c, FunctionID: "fn-1"},
	)

	d.AfterAuth(context.Background(), session)
	require.NoError(t, d.Drain(context.Background()))
	require.Len(t, api.requests, 2)
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *registration.Dispatcher
	d.AfterAuth(context.Background(), session)
	d.Wait()
}
