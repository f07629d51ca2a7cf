package notifier_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/notifier"
	"go.uber.org/zap"
)

const token = "erp-service-token"

func notification() domain.Notification {
	return domain.Notification{UserID: 1, NotificationType: "general", Title: "Card moved to done"}
}

func newClient(baseURL, tok string) *notifier.Client {
	return notifier.NewClient(&config.ERPConfig{
		BaseURL:      baseURL,
		ServiceToken: tok,
		Timeout:      2,
		MaxAttempts:  3,
		RetryBaseMs:  1,
	}, zap.NewNop())
}

func TestReceiver_ServiceTokenContract(t *testing.T) {
	rc := notifier.NewReceiver(token, zap.NewNop())
	body := `{"user_id":1,"notification_type":"general","title":"x"}`

	post := func(header string, set bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, notifier.Path, bytes.NewBufferString(body))
		if set {
			req.Header.Set(notifier.ServiceTokenHeader, header)
		}
		rec := httptest.NewRecorder()
		rc.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post("", false).Code)
	assert.Equal(t, http.StatusForbidden, post("wrong", true).Code)
	assert.Equal(t, http.StatusCreated, post(token, true).Code)
	require.Len(t, rc.Records(), 1)
	assert.Equal(t, "x", rc.Records()[0].Title)
}

func TestReceiver_RejectsInvalidBodies(t *testing.T) {
	rc := notifier.NewReceiver(token, zap.NewNop())
	for name, body := range map[string]string{
		"not json":      `{`,
		"missing title": `{"user_id":1,"notification_type":"general"}`,
		"zero user":     `{"user_id":0,"notification_type":"general","title":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, notifier.Path, bytes.NewBufferString(body))
			req.Header.Set(notifier.ServiceTokenHeader, token)
			rec := httptest.NewRecorder()
			rc.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, rc.Records())

	rec := httptest.NewRecorder()
	rc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, notifier.Path, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestClient_DeliversWithIdempotencyKey(t *testing.T) {
	rc := notifier.NewReceiver(token, zap.NewNop())
	srv := httptest.NewServer(rc)
	defer srv.Close()

	c := newClient(srv.URL, token)
	require.True(t, c.Enabled())
	require.NoError(t, c.Notify(context.Background(), notification(), "rule-1-event-2"))

	records := rc.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "rule-1-event-2", records[0].IdempotencyKey)
	assert.Equal(t, "Card moved to done", records[0].Title)
	assert.Equal(t, 1, rc.Hits("rule-1-event-2"))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	require.NoError(t, newClient(srv.URL, token).Notify(context.Background(), notification(), "k"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newClient(srv.URL, token).Notify(context.Background(), notification(), "k")
	require.Error(t, err)
	var se *notifier.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	rc := notifier.NewReceiver("other-token", zap.NewNop())
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		rc.ServeHTTP(w, r)
	}))
	defer srv.Close()

	err := newClient(srv.URL, token).Notify(context.Background(), notification(), "k")
	require.Error(t, err)
	assert.False(t, notifier.IsTemporary(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DisabledIsNoop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newClient(srv.URL, "")
	assert.False(t, c.Enabled())
	require.NoError(t, c.Notify(context.Background(), notification(), "k"))
	assert.Zero(t, calls.Load())
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, notifier.IsTemporary(&notifier.StatusError{StatusCode: 500}))
	assert.True(t, notifier.IsTemporary(&notifier.StatusError{StatusCode: 429}))
	assert.False(t, notifier.IsTemporary(&notifier.StatusError{StatusCode: 400}))
	assert.False(t, notifier.IsTemporary(context.Canceled))
	assert.False(t, notifier.IsTemporary(nil))
}
