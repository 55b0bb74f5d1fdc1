package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jackesh4086/spr-price-check/internal/catalog"
	"github.com/jackesh4086/spr-price-check/internal/service"
	"github.com/jackesh4086/spr-price-check/internal/stores"
)

// AdminHandler serves the admin area: login, session introspection,
// catalog management and the store directory.
type AdminHandler struct {
	admin    *service.AdminService
	catalog  *catalog.Service
	stores   *stores.Service
	validate *validator.Validate
}

func NewAdminHandler(adminService *service.AdminService, catalogService *catalog.Service, storesService *stores.Service) *AdminHandler {
	return &AdminHandler{
		admin:    adminService,
		catalog:  catalogService,
		stores:   storesService,
		validate: validator.New(),
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request")
		return
	}

	sessionToken, err := h.admin.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, err, "Invalid credentials")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err, "Login failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]string{
		"token": sessionToken,
	}, "Logged in"))
}

// Session handles GET /admin/session: validates the bearer token.
func (h *AdminHandler) Session(w http.ResponseWriter, r *http.Request) {
	payload, err := h.admin.VerifySession(bearerToken(r))
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err, "Session invalid")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(map[string]string{
		"username": payload.Username,
	}, ""))
}

// RequireSession guards the catalog management routes.
func (h *AdminHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.admin.VerifySession(bearerToken(r)); err != nil {
			respondWithError(w, http.StatusUnauthorized, err, "Session invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetData handles GET /admin/data.
func (h *AdminHandler) GetData(w http.ResponseWriter, r *http.Request) {
	data, err := h.catalog.Data(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Could not load catalog")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, ""))
}

// ReplaceData handles PUT /admin/data: wholesale document replacement.
func (h *AdminHandler) ReplaceData(w http.ResponseWriter, r *http.Request) {
	var data catalog.Data
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid catalog document")
		return
	}
	if err := h.catalog.ReplaceData(r.Context(), &data); err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Could not save catalog")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Catalog replaced"))
}

type metadataRequest struct {
	Brand          string `json:"brand"`
	Currency       string `json:"currency"`
	WhatsAppNumber string `json:"whatsappNumber"`
	Disclaimer     string `json:"disclaimer"`
}

// UpdateMetadata handles PUT /admin/metadata: document-level fields only,
// empty fields are left untouched.
func (h *AdminHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	data, err := h.catalog.UpdateMetadata(r.Context(), req.Brand, req.Currency, req.WhatsAppNumber, req.Disclaimer)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Could not update metadata")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Metadata updated"))
}

// AddModel handles POST /admin/models.
func (h *AdminHandler) AddModel(w http.ResponseWriter, r *http.Request) {
	var model catalog.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid model")
		return
	}
	if model.ID == "" || model.Name == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("id and name are required"), "Invalid model")
		return
	}

	data, err := h.catalog.AddModel(r.Context(), model)
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not add model")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(data, "Model added"))
}

// UpdateModel handles PUT /admin/models/{id}.
func (h *AdminHandler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	var model catalog.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid model")
		return
	}

	data, err := h.catalog.UpdateModel(r.Context(), chi.URLParam(r, "id"), model)
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not update model")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Model updated"))
}

// DeleteModel handles DELETE /admin/models/{id}.
func (h *AdminHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	data, err := h.catalog.DeleteModel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not delete model")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Model deleted"))
}

// AddIssue handles POST /admin/issues.
func (h *AdminHandler) AddIssue(w http.ResponseWriter, r *http.Request) {
	var issue catalog.Issue
	if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid issue")
		return
	}
	if issue.ID == "" || issue.Name == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("id and name are required"), "Invalid issue")
		return
	}

	data, err := h.catalog.AddIssue(r.Context(), issue)
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not add issue")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(data, "Issue added"))
}

// UpdateIssue handles PUT /admin/issues/{id}.
func (h *AdminHandler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	var issue catalog.Issue
	if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid issue")
		return
	}

	data, err := h.catalog.UpdateIssue(r.Context(), chi.URLParam(r, "id"), issue)
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not update issue")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Issue updated"))
}

// DeleteIssue handles DELETE /admin/issues/{id}.
func (h *AdminHandler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	data, err := h.catalog.DeleteIssue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not delete issue")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Issue deleted"))
}

// AddPrice handles POST /admin/prices.
func (h *AdminHandler) AddPrice(w http.ResponseWriter, r *http.Request) {
	var price catalog.Price
	if err := json.NewDecoder(r.Body).Decode(&price); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid price")
		return
	}

	data, err := h.catalog.AddPrice(r.Context(), price)
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not add price")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(data, "Price added"))
}

// UpdatePrice handles PUT /admin/prices/{modelId}/{issueId}.
func (h *AdminHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var price catalog.Price
	if err := json.NewDecoder(r.Body).Decode(&price); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid price")
		return
	}

	data, err := h.catalog.UpdatePrice(r.Context(), chi.URLParam(r, "modelId"), chi.URLParam(r, "issueId"), price)
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not update price")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Price updated"))
}

// DeletePrice handles DELETE /admin/prices/{modelId}/{issueId}.
func (h *AdminHandler) DeletePrice(w http.ResponseWriter, r *http.Request) {
	data, err := h.catalog.DeletePrice(r.Context(), chi.URLParam(r, "modelId"), chi.URLParam(r, "issueId"))
	if err != nil {
		respondWithError(w, statusForCatalogError(err), err, "Could not delete price")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(data, "Price deleted"))
}

// UpsertStore handles PUT /admin/stores: writes one store location into
// the directory index that GET /stores searches.
func (h *AdminHandler) UpsertStore(w http.ResponseWriter, r *http.Request) {
	if h.stores == nil {
		respondWithError(w, http.StatusServiceUnavailable,
			errors.New("store directory not configured"), "Store directory not available")
		return
	}

	var loc stores.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid store location")
		return
	}
	if loc.ID == "" || loc.Name == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("id and name are required"), "Invalid store location")
		return
	}

	if err := h.stores.Index(r.Context(), loc); err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Could not save store")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(loc, "Store saved"))
}

func statusForCatalogError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
