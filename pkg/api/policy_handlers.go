package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// PolicyHandlers manages policies
type PolicyHandlers struct {
	store    storage.Store
	audit    *auth.AuditLogger
	validate *validator.Validate
}

// NewPolicyHandlers creates policy handlers
func NewPolicyHandlers(store storage.Store, audit *auth.AuditLogger, validate *validator.Validate) *PolicyHandlers {
	return &PolicyHandlers{store: store, audit: audit, validate: validate}
}

// RegisterRoutes registers policy routes on an admin router
func (h *PolicyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/policies", h.listPolicies).Methods(http.MethodGet)
	router.HandleFunc("/policies", h.createPolicy).Methods(http.MethodPost)
	router.HandleFunc("/policies/{id}", h.getPolicy).Methods(http.MethodGet)
	router.HandleFunc("/policies/{id}/renew", h.renewPolicy).Methods(http.MethodPost)
	router.HandleFunc("/policies/{id}/cancel", h.cancelPolicy).Methods(http.MethodPost)
}

// ParsePolicyFilter reads client_id, status and expiringWithinDays from the query string
func ParsePolicyFilter(r *http.Request) (models.PolicyFilter, error) {
	var filter models.PolicyFilter

	clientID, err := httputil.ParseQueryInt64(r, "client_id", 0)
	if err != nil || clientID < 0 {
		return filter, errBadQuery("client_id")
	}
	filter.ClientID = clientID

	if status := httputil.ParseQueryString(r, "status", ""); status != "" {
		filter.Status = models.PolicyStatus(status)
		if !filter.Status.IsValid() {
			return filter, errBadQuery("status")
		}
	}

	days, err := httputil.ParseQueryInt(r, "expiringWithinDays", 0)
	if err != nil || days < 0 {
		return filter, errBadQuery("expiringWithinDays")
	}
	filter.ExpiringWithinDays = days
	return filter, nil
}

type errBadQuery string

func (e errBadQuery) Error() string {
	return "invalid query parameter: " + string(e)
}

// listPolicies handles GET /api/admin/policies
func (h *PolicyHandlers) listPolicies(w http.ResponseWriter, r *http.Request) {
	filter, err := ParsePolicyFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	policies, err := h.store.ListPolicies(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "policy")
		return
	}
	httputil.WriteSuccess(w, policies)
}

// getPolicy handles GET /api/admin/policies/{id}
func (h *PolicyHandlers) getPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.store.GetPolicy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err, "policy")
		return
	}
	httputil.WriteSuccess(w, policy)
}

// createPolicy handles POST /api/admin/policies
func (h *PolicyHandlers) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if !httputil.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}
	policy, err := req.Policy()
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if err := policy.ValidateDates(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.store.GetClient(r.Context(), policy.ClientID); err != nil {
		writeError(w, r, err, "client")
		return
	}

	err = h.store.CreatePolicy(r.Context(), policy)
	h.auditPolicy(r, auth.ActionPolicyCreate, policy.ID, err)
	if err != nil {
		writeError(w, r, err, "policy")
		return
	}
	httputil.WriteCreated(w, policy)
}

// renewPolicy handles POST /api/admin/policies/{id}/renew
func (h *PolicyHandlers) renewPolicy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req RenewPolicyRequest
	if !httputil.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}
	renewal, err := req.Policy()
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.store.RenewPolicy(r.Context(), id, renewal)
	h.auditPolicy(r, auth.ActionPolicyRenew, id, err)
	if err != nil {
		writeError(w, r, err, "policy")
		return
	}
	httputil.WriteCreated(w, created)
}

// cancelPolicy handles POST /api/admin/policies/{id}/cancel
func (h *PolicyHandlers) cancelPolicy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	policy, err := h.store.CancelPolicy(r.Context(), id)
	h.auditPolicy(r, auth.ActionPolicyCancel, id, err)
	if err != nil {
		writeError(w, r, err, "policy")
		return
	}
	httputil.WriteSuccess(w, policy)
}

func (h *PolicyHandlers) auditPolicy(r *http.Request, action, id string, err error) {
	status := auth.StatusSuccess
	if err != nil {
		status = auth.StatusFailure
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       action,
		ResourceType: "policy",
		ResourceID:   id,
		Status:       status,
		Err:          err,
	})
}
