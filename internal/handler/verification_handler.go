package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/catalog"
	"github.com/jackesh4086/spr-price-check/internal/otp"
	"github.com/jackesh4086/spr-price-check/internal/service"
	"github.com/jackesh4086/spr-price-check/internal/stores"
	"github.com/jackesh4086/spr-price-check/internal/token"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

const quoteTokenCookie = "quoteToken"

// Response is the standard API envelope.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	RetryAfter int         `json:"retryAfter,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func errorResponse(err error, message string) Response {
	return Response{Success: false, Error: err.Error(), Message: message}
}

// VerificationHandler serves the public verification and quote endpoints.
type VerificationHandler struct {
	verification *service.VerificationService
	catalog      *catalog.Service
	stores       *stores.Service
	validate     *validator.Validate
	secureCookie bool
}

func NewVerificationHandler(
	verification *service.VerificationService,
	catalogService *catalog.Service,
	storesService *stores.Service,
	secureCookie bool,
) *VerificationHandler {
	return &VerificationHandler{
		verification: verification,
		catalog:      catalogService,
		stores:       storesService,
		validate:     validator.New(),
		secureCookie: secureCookie,
	}
}

type requestCodeRequest struct {
	Phone   string `json:"phone" validate:"required,min=9,max=16"`
	ModelID string `json:"modelId" validate:"required,max=64"`
	IssueID string `json:"issueId" validate:"required,max=64"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=9,max=16"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// RequestCode handles POST /otp/request.
func (h *VerificationHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request")
		return
	}

	rejection, err := h.verification.RequestCode(r.Context(), req.Phone, req.ModelID, req.IssueID, clientIP(r))
	if err != nil {
		respondWithError(w, statusForServiceError(err), err, "Could not request code")
		return
	}
	if rejection != nil {
		respondWithRejection(w, rejection)
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Verification code sent"))
}

// VerifyCode handles POST /otp/verify. On success the quote token is both
// returned in the body and set as a cookie.
func (h *VerificationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request")
		return
	}

	quoteToken, rejection, err := h.verification.VerifyCode(r.Context(), req.Phone, req.Code, clientIP(r))
	if err != nil {
		respondWithError(w, statusForServiceError(err), err, "Could not verify code")
		return
	}
	if rejection != nil {
		respondWithRejection(w, rejection)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     quoteTokenCookie,
		Value:    quoteToken,
		Path:     "/",
		MaxAge:   int(h.verification.QuoteTokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	respondWithJSON(w, http.StatusOK, successResponse(map[string]string{
		"quoteToken": quoteToken,
	}, "Phone verified"))
}

// GetQuote handles GET /quote. The token comes from the query string or
// the cookie set by VerifyCode.
func (h *VerificationHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		if cookie, err := r.Cookie(quoteTokenCookie); err == nil {
			tokenStr = cookie.Value
		}
	}
	if tokenStr == "" {
		respondWithError(w, http.StatusUnauthorized, token.ErrTokenInvalid, "Verification required")
		return
	}

	quote, err := h.verification.GetQuote(r.Context(), tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrTokenExpired):
			respondWithError(w, http.StatusUnauthorized, err, "Your session has expired. Please verify your phone again.")
		case errors.Is(err, token.ErrTokenInvalid):
			respondWithError(w, http.StatusUnauthorized, err, "Verification required")
		case errors.Is(err, catalog.ErrNotFound):
			respondWithError(w, http.StatusNotFound, err, "No price found for this selection")
		default:
			respondWithError(w, http.StatusInternalServerError, err, "Could not load quote")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(quote, ""))
}

// GetCatalog handles GET /catalog: the public model and issue lists.
func (h *VerificationHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	data, err := h.catalog.Data(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Could not load catalog")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"brand":  data.Brand,
		"models": data.Models,
		"issues": data.Issues,
	}, ""))
}

// SearchStores handles GET /stores.
func (h *VerificationHandler) SearchStores(w http.ResponseWriter, r *http.Request) {
	if h.stores == nil {
		respondWithJSON(w, http.StatusOK, successResponse([]stores.Location{}, ""))
		return
	}

	locations, err := h.stores.Search(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Store search failed")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(locations, ""))
}

func respondWithRejection(w http.ResponseWriter, rejection *otp.Rejection) {
	status := http.StatusBadRequest
	switch rejection.Kind {
	case otp.KindLocked, otp.KindCooldown, otp.KindRateLimited:
		status = http.StatusTooManyRequests
	case otp.KindDelivery:
		status = http.StatusBadGateway
	}

	if rejection.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rejection.RetryAfter))
	}
	respondWithJSON(w, status, Response{
		Success:    false,
		Error:      string(rejection.Kind),
		Message:    rejection.Message,
		RetryAfter: rejection.RetryAfter,
	})
}

func statusForServiceError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrUnknownModel),
		errors.Is(err, service.ErrUnknownIssue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	util.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("message", message),
		zap.Error(err))
	respondWithJSON(w, statusCode, errorResponse(err, message))
}

// clientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
