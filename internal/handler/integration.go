package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/dealflow/platform-server-go/internal/errors"
	"github.com/dealflow/platform-server-go/internal/httputil"
	"github.com/dealflow/platform-server-go/internal/middleware"
	"github.com/dealflow/platform-server-go/internal/model"
	"github.com/dealflow/platform-server-go/internal/service"
)

type IntegrationHandler struct {
	svc        *service.IntegrationService
	successURL string
	failureURL string
}

func NewIntegrationHandler(svc *service.IntegrationService, successURL, failureURL string) *IntegrationHandler {
	return &IntegrationHandler{
		svc:        svc,
		successURL: successURL,
		failureURL: failureURL,
	}
}

// Routes returns the authenticated integration API. The callback is mounted
// separately because the provider redirect carries no bearer token.
func (h *IntegrationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/{provider}/connect", h.Connect)
	r.Delete("/{id}", h.Delete)

	return r
}

func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	records, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list integrations")
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*model.Integration{}
	}

	httputil.WriteData(w, http.StatusOK, records)
}

type connectRequest struct {
	Capabilities []string `json:"capabilities"`
}

func (h *IntegrationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	provider := chi.URLParam(r, "provider")

	if !isValidProvider(provider) {
		httputil.WriteError(w, apperrors.InvalidInput("provider", "unknown provider"))
		return
	}

	var req connectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, apperrors.ValidationError("request body must be JSON"))
			return
		}
	}

	result, err := h.svc.Connect(r.Context(), user.ID, provider, req.Capabilities)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("failed to build authorization URL")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// Callback receives the provider redirect. A request without both code and
// state never entered the flow and gets a plain 400; everything after that
// point is browser-facing and resolves to a redirect, never a JSON error.
func (h *IntegrationHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		log.Warn().Str("error", errMsg).Str("provider", provider).Msg("OAuth error from provider")
		http.Redirect(w, r, h.failureURL, http.StatusTemporaryRedirect)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		httputil.WriteError(w, apperrors.MissingRequired("code and state"))
		return
	}

	if !isValidProvider(provider) {
		httputil.WriteError(w, apperrors.InvalidInput("provider", "unknown provider"))
		return
	}

	if _, err := h.svc.HandleCallback(r.Context(), provider, code, state); err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("OAuth callback failed")
		http.Redirect(w, r, h.failureURL, http.StatusTemporaryRedirect)
		return
	}

	http.Redirect(w, r, h.successURL, http.StatusTemporaryRedirect)
}

func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Disconnect(r.Context(), user.ID, id); err != nil {
		if apperrors.GetCode(err) != apperrors.ErrCodeNotFound {
			log.Error().Err(err).Str("id", id).Msg("failed to disconnect integration")
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Integration disconnected")
}

func isValidProvider(provider string) bool {
	for _, p := range model.ValidProviders() {
		if provider == p {
			return true
		}
	}
	return false
}
