package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/middleware"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// MeHandlers serves the caller's own records
type MeHandlers struct {
	store     storage.Store
	documents *DocumentHandlers
}

// NewMeHandlers creates self-service handlers. Document reads are delegated to documents
// once ownership is established.
func NewMeHandlers(store storage.Store, documents *DocumentHandlers) *MeHandlers {
	return &MeHandlers{store: store, documents: documents}
}

// RegisterRoutes registers self-service routes on an authenticated router
func (h *MeHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.getMe).Methods(http.MethodGet)

	owned := router.PathPrefix("/policies").Subrouter()
	owned.Use(middleware.RequireClient)
	owned.HandleFunc("", h.listMyPolicies).Methods(http.MethodGet)
	owned.HandleFunc("/{id}/documents", h.listMyDocuments).Methods(http.MethodGet)
	owned.HandleFunc("/{id}/documents/{docID}/download", h.downloadMyDocument).Methods(http.MethodGet)
}

// getMe handles GET /api/me
func (h *MeHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx.Profile == nil {
		httputil.WriteForbidden(w, "no portal profile for this account")
		return
	}

	resp := MeResponse{
		AccountID:          authCtx.AccountID,
		Email:              authCtx.Email,
		Role:               authCtx.Profile.Role,
		MustChangePassword: authCtx.Profile.MustChangePassword,
	}
	if clientID, ok := authCtx.ClientID(); ok {
		client, err := h.store.GetClient(r.Context(), clientID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, err, "client")
			return
		}
		resp.Client = client
	}
	httputil.WriteSuccess(w, resp)
}

// listMyPolicies handles GET /api/me/policies
func (h *MeHandlers) listMyPolicies(w http.ResponseWriter, r *http.Request) {
	clientID, _ := middleware.GetAuthContext(r).ClientID()
	policies, err := h.store.ListPolicies(r.Context(), models.PolicyFilter{ClientID: clientID})
	if err != nil {
		writeError(w, r, err, "policy")
		return
	}
	httputil.WriteSuccess(w, policies)
}

// listMyDocuments handles GET /api/me/policies/{id}/documents
func (h *MeHandlers) listMyDocuments(w http.ResponseWriter, r *http.Request) {
	policy, ok := h.ownedPolicy(w, r)
	if !ok {
		return
	}
	h.documents.writeDocuments(w, r, policy.ID)
}

// downloadMyDocument handles GET /api/me/policies/{id}/documents/{docID}/download
func (h *MeHandlers) downloadMyDocument(w http.ResponseWriter, r *http.Request) {
	policy, ok := h.ownedPolicy(w, r)
	if !ok {
		return
	}
	h.documents.writeDownload(w, r, policy.ID, mux.Vars(r)["docID"])
}

// ownedPolicy loads the policy in the path and answers 404 unless it belongs to the
// caller's client.
func (h *MeHandlers) ownedPolicy(w http.ResponseWriter, r *http.Request) (*models.Policy, bool) {
	clientID, _ := middleware.GetAuthContext(r).ClientID()
	policy, err := h.store.GetPolicy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err, "policy")
		return nil, false
	}
	if policy.ClientID != clientID {
		httputil.WriteNotFoundError(w, "policy not found")
		return nil, false
	}
	return policy, true
}
