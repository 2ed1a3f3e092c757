package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/shipping/quote", h.Quote)
	r.Get("/api/v1/shipping/quotes/{quoteKey}", h.Get)
	return r
}

func postQuote(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

const testDestinationJSON = `{"addressLine1":"12 Main St","city":"Springfield","state":"IL","postalCode":"62701"}`

func TestHandlerStandardQuoteAndLookup(t *testing.T) {
	f := newServiceFixture(t, nil)
	router := newTestRouter(&Handler{Svc: f.svc})

	rec, body := postQuote(t, router, `{"cart":[{"sku":"DESK-1"},{"sku":"GHOST"}],"destination":`+testDestinationJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, false, body["freight"])
	require.Equal(t, "fresh", body["source"])
	require.Equal(t, []any{"GHOST"}, body["missingProducts"])
	require.Equal(t, []any{}, body["installOnlySkus"])
	require.Equal(t, float64(0), body["rateCount"])
	require.NotEmpty(t, body["createdAt"])
	require.NotEmpty(t, body["expiresAt"])
	require.NotContains(t, body, "rates")
	packages := body["packages"].([]any)
	require.Len(t, packages, 1)
	pkg := packages[0].(map[string]any)
	require.Equal(t, 3.0, pkg["weightLbs"])
	require.Equal(t, map[string]any{"length": 10.0, "width": 8.0, "height": 4.0}, pkg["dimensions"])

	key := body["quoteKey"].(string)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quotes/"+key, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)
	var cached map[string]any
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &cached))
	require.Equal(t, "cache", cached["source"])
	require.Equal(t, body["quoteRequestId"], cached["quoteRequestId"])
}

func TestHandlerInstallOnlyShape(t *testing.T) {
	f := newServiceFixture(t, nil)
	router := newTestRouter(&Handler{Svc: f.svc})

	rec, body := postQuote(t, router, `{"cart":[{"sku":"INSTALL-1"}],"destination":`+testDestinationJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["installOnly"])
	require.Equal(t, []any{"INSTALL-1"}, body["installOnlySkus"])
	require.Equal(t, []any{}, body["missingProducts"])
	require.NotEmpty(t, body["message"])
	require.NotContains(t, body, "packages")
}

func TestHandlerFreightShape(t *testing.T) {
	f := newServiceFixture(t, nil)
	router := newTestRouter(&Handler{Svc: f.svc})

	rec, body := postQuote(t, router, `{"cart":[{"sku":"SAFE-1"}],"destination":`+testDestinationJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["freight"])
	require.NotEmpty(t, body["message"])
	require.Len(t, body["packages"], 1)
	require.NotContains(t, body, "quoteKey")
}

func TestHandlerErrors(t *testing.T) {
	f := newServiceFixture(t, nil)
	router := newTestRouter(&Handler{Svc: f.svc})

	rec, body := postQuote(t, router, `{"cart":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", body["code"])
	require.NotEmpty(t, body["error"])

	rec, body = postQuote(t, router, `{"cart":[],"destination":{"city":"x"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", body["code"])
	require.Contains(t, body["error"], "cart must contain at least one item")

	f.catalog.err = errors.New("down")
	rec, body = postQuote(t, router, `{"cart":[{"sku":"DESK-1"}],"destination":`+testDestinationJSON+`}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "CATALOG_UNAVAILABLE", body["code"])
	require.NotEmpty(t, body["error"])
}

func TestHandlerLookupMissing(t *testing.T) {
	f := newServiceFixture(t, nil)
	router := newTestRouter(&Handler{Svc: f.svc})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quotes/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"error"`)
}

func TestHandlerBodyTooLarge(t *testing.T) {
	f := newServiceFixture(t, nil)
	h := &Handler{Svc: f.svc}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quote", bytes.NewReader(bytes.Repeat([]byte(" "), 64)))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 8)
	h.Quote(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
