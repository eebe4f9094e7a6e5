package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/trace"
)

func newTestOrderServer(t *testing.T) (*OrderServer, *trace.Store) {
	t.Helper()
	store := trace.NewStore("order", 100)
	logger := slog.New(slog.DiscardHandler)
	return NewOrderServer(nil, store, logger), store
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	srv, _ := newTestOrderServer(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_InvalidCustomerID(t *testing.T) {
	srv, _ := newTestOrderServer(t)

	body := `{"customerId": "not-a-uuid", "items": [{"productId": "p1", "quantity": 1, "unitPrice": "5.00"}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid customer id")
}

func TestCreateOrder_RejectedCommandTraceWording(t *testing.T) {
	srv, store := newTestOrderServer(t)

	// Valid ids but no items: the command passes decoding, gets traced, and
	// is then rejected by validation.
	body := `{"customerId": "0e4a4747-87c0-4b8a-9a46-8d1cbb4e0d3f", "items": []}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("X-Trace-Id", "t-reject")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The rejected command left a trace, but none of it claims acceptance.
	events := store.ByID("t-reject")
	require.NotEmpty(t, events)
	for _, evt := range events {
		assert.NotContains(t, evt.Message, "accepted")
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	srv, _ := newTestOrderServer(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders_MissingCustomerID(t *testing.T) {
	srv, _ := newTestOrderServer(t)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTraceByID(t *testing.T) {
	srv, store := newTestOrderServer(t)
	store.Record("abc", "first")
	store.Record("abc", "second")
	store.Record("other", "unrelated")

	req := httptest.NewRequest(http.MethodGet, "/trace/abc", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var events []trace.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Message)
	assert.Equal(t, "second", events[1].Message)
}

func TestTraceByID_UnknownIsEmptyList(t *testing.T) {
	srv, _ := newTestOrderServer(t)

	req := httptest.NewRequest(http.MethodGet, "/trace/unknown", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTraceRecent(t *testing.T) {
	srv, store := newTestOrderServer(t)
	store.Record("", "a")
	store.Record("t", "b")

	req := httptest.NewRequest(http.MethodGet, "/trace/recent", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var events []trace.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Message)
	assert.Equal(t, "b", events[1].Message)
}
