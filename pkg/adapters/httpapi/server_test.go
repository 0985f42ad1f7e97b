package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/httpapi"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	calls []string
}

func (f *fakeEngine) Process(ctx context.Context, userID, platform, text string, metadata map[string]string) {
	f.calls = append(f.calls, platform+":"+userID+":"+text)
}

func TestHandleInbound(t *testing.T) {
	engine := &fakeEngine{}
	handler := httpapi.NewHandler(engine)

	body := `{"user_id":"42","platform":"telegram","text":"hello","metadata":{"username":"ann"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/inbound", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, engine.calls, 1)
	assert.Equal(t, "telegram:42:hello", engine.calls[0])
}

func TestHandleInbound_Validation(t *testing.T) {
	engine := &fakeEngine{}
	handler := httpapi.NewHandler(engine)

	cases := map[string]string{
		"not json":         `{"user_id":`,
		"missing user":     `{"platform":"telegram","text":"hi"}`,
		"missing platform": `{"user_id":"42","text":"hi"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/inbound", strings.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, engine.calls)
		})
	}
}

func TestHealthz(t *testing.T) {
	handler := httpapi.NewHandler(&fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "arbor_test_total"})
	reg.MustRegister(counter)
	counter.Inc()

	handler := httpapi.NewHandler(&fakeEngine{}, httpapi.WithMetrics(reg))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "arbor_test_total 1")
}

func TestPushConnector(t *testing.T) {
	var got httpapi.PushPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, jsonDecode(r, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conn := httpapi.NewPushConnector(srv.URL, srv.Client())
	err := conn.Send(context.Background(), "42", domain.Message{
		Text:    "pick one",
		Buttons: []string{"a", "b"},
		Format:  domain.FormatMarkdown,
	})
	require.NoError(t, err)

	assert.Equal(t, "42", got.UserID)
	assert.Equal(t, "pick one", got.Text)
	assert.Equal(t, []string{"a", "b"}, got.Buttons)
	assert.Equal(t, domain.FormatMarkdown, got.Format)
}

func TestPushConnector_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	conn := httpapi.NewPushConnector(srv.URL, srv.Client())
	err := conn.Send(context.Background(), "42", domain.Message{Text: "hi"})
	assert.ErrorContains(t, err, "status 502")
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
