package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/shipquote/internal/common"
	"github.com/noah-isme/shipquote/internal/ratesource"
)

// Handler exposes the quote endpoints.
type Handler struct {
	Svc *Service
}

type installOnlyResponse struct {
	InstallOnly     bool     `json:"installOnly"`
	Message         string   `json:"message"`
	InstallOnlySKUs []string `json:"installOnlySkus"`
	MissingProducts []string `json:"missingProducts"`
}

type freightResponse struct {
	Freight         bool      `json:"freight"`
	Message         string    `json:"message"`
	Packages        []Package `json:"packages"`
	InstallOnlySKUs []string  `json:"installOnlySkus"`
	MissingProducts []string  `json:"missingProducts"`
}

type standardResponse struct {
	Success         bool              `json:"success"`
	Freight         bool              `json:"freight"`
	Packages        []Package         `json:"packages"`
	InstallOnlySKUs []string          `json:"installOnlySkus"`
	MissingProducts []string          `json:"missingProducts"`
	QuoteKey        string            `json:"quoteKey"`
	QuoteRequestID  string            `json:"quoteRequestId"`
	Source          Source            `json:"source"`
	RateCount       int               `json:"rateCount"`
	Rates           []ratesource.Rate `json:"rates,omitempty"`
	CartSummary     string            `json:"cartSummary"`
	CreatedAt       string            `json:"createdAt"`
	ExpiresAt       string            `json:"expiresAt,omitempty"`
}

// Quote handles POST /api/v1/shipping/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, decodeError(err))
		return
	}
	res, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		common.WriteError(w, quoteError(err))
		return
	}

	switch res.Outcome {
	case OutcomeInstallOnly:
		common.JSON(w, http.StatusOK, installOnlyResponse{
			InstallOnly:     true,
			Message:         res.Message,
			InstallOnlySKUs: res.InstallOnlySKUs,
			MissingProducts: res.MissingProducts,
		})
	case OutcomeFreight:
		common.JSON(w, http.StatusOK, freightResponse{
			Freight:         true,
			Message:         res.Message,
			Packages:        res.Packages,
			InstallOnlySKUs: res.InstallOnlySKUs,
			MissingProducts: res.MissingProducts,
		})
	default:
		common.JSON(w, http.StatusOK, newStandardResponse(res.Entry))
	}
}

// Get handles GET /api/v1/shipping/quotes/{quoteKey}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	entry, err := h.Svc.Lookup(r.Context(), chi.URLParam(r, "quoteKey"))
	if err != nil {
		common.WriteError(w, common.Wrap(err, http.StatusNotFound, "NOT_FOUND", "quote not found or expired"))
		return
	}
	common.JSON(w, http.StatusOK, newStandardResponse(entry))
}

func decodeError(err error) *common.AppError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return common.Wrap(err, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
	}
	return common.Wrap(err, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload")
}

// quoteError maps pipeline failures onto API errors.
func quoteError(err error) *common.AppError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return common.Wrap(err, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error()).WithDetails(verr.Fields)
	case errors.Is(err, ErrCatalogUnavailable):
		return common.Wrap(err, http.StatusInternalServerError, "CATALOG_UNAVAILABLE", "product catalog unavailable, please retry")
	default:
		return common.Wrap(err, http.StatusInternalServerError, "INTERNAL", "failed to compute shipping quote")
	}
}

func newStandardResponse(e Entry) standardResponse {
	resp := standardResponse{
		Success:         true,
		Packages:        e.Packages,
		InstallOnlySKUs: orEmpty(e.InstallOnlySKUs),
		MissingProducts: orEmpty(e.MissingProducts),
		QuoteKey:        e.QuoteKey,
		QuoteRequestID:  e.QuoteRequestID,
		Source:          e.Source,
		RateCount:       e.RateCount,
		Rates:           e.Rates,
		CartSummary:     e.CartSummary,
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Packages == nil {
		resp.Packages = []Package{}
	}
	if e.ExpiresAt != nil {
		resp.ExpiresAt = e.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}
