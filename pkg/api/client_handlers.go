package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// ClientHandlers manages client records
type ClientHandlers struct {
	store       storage.Store
	provisioner AccessProvisioner
	audit       *auth.AuditLogger
	validate    *validator.Validate
}

// NewClientHandlers creates client handlers
func NewClientHandlers(store storage.Store, provisioner AccessProvisioner, audit *auth.AuditLogger, validate *validator.Validate) *ClientHandlers {
	return &ClientHandlers{
		store:       store,
		provisioner: provisioner,
		audit:       audit,
		validate:    validate,
	}
}

// RegisterRoutes registers client routes on an admin router
func (h *ClientHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/clients", h.listClients).Methods(http.MethodGet)
	router.HandleFunc("/clients", h.createClient).Methods(http.MethodPost)
	router.HandleFunc("/clients/{id}", h.getClient).Methods(http.MethodGet)
	router.HandleFunc("/clients/{id}", h.updateClient).Methods(http.MethodPut)
}

// listClients handles GET /api/admin/clients
func (h *ClientHandlers) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.store.ListClients(r.Context())
	if err != nil {
		writeError(w, r, err, "client")
		return
	}
	httputil.WriteSuccess(w, clients)
}

// getClient handles GET /api/admin/clients/{id}
func (h *ClientHandlers) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	client, err := h.store.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "client")
		return
	}
	httputil.WriteSuccess(w, client)
}

// createClient handles POST /api/admin/clients. The client row is kept even when
// provisioning its access fails; reconciliation picks it up later.
func (h *ClientHandlers) createClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !httputil.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}

	client := &models.Client{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		DocumentID: strings.TrimSpace(req.DocumentID),
		Phone:      strings.TrimSpace(req.Phone),
	}
	if err := h.store.CreateClient(r.Context(), client); err != nil {
		h.auditClient(r, auth.ActionClientCreate, "", err)
		writeError(w, r, err, "client")
		return
	}
	h.auditClient(r, auth.ActionClientCreate, strconv.FormatInt(client.ID, 10), nil)

	resp := CreateClientResponse{
		Client: client,
		Access: AccessOutcome{Status: AccessNotRequested},
	}
	if req.CreateAccess {
		resp.Access = h.provision(r, client, req.SendEmail)
	}
	httputil.WriteCreated(w, resp)
}

func (h *ClientHandlers) provision(r *http.Request, client *models.Client, sendEmail bool) AccessOutcome {
	if !client.HasEligibleEmail() {
		return AccessOutcome{Status: AccessNoEmail}
	}

	logger := observability.FromContext(r.Context()).WithField("client_id", client.ID)
	result, err := h.provisioner.Create(r.Context(), client, sendEmail)
	if err != nil {
		logger.WithError(err).Warn("Access provisioning failed for new client")
		var provErr *access.ProvisionError
		if errors.As(err, &provErr) && provErr.RollbackErr != nil {
			logger.WithField("account_id", provErr.AccountID).Error("Account rollback failed")
		}
		return AccessOutcome{Status: AccessFailed, Error: err.Error()}
	}

	outcome := AccessOutcome{
		Status:    AccessCreated,
		AccountID: result.AccountID,
		EmailSent: result.EmailSent,
	}
	if result.EmailErr != nil {
		outcome.Error = "email not sent: " + result.EmailErr.Error()
	}
	return outcome
}

// updateClient handles PUT /api/admin/clients/{id}
func (h *ClientHandlers) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateClientRequest
	if !httputil.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}

	update := models.ClientUpdate{Name: req.Name, Phone: req.Phone}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !models.IsEligibleEmail(email) {
			httputil.WriteBadRequest(w, "validation failed: Email: email")
			return
		}
		update.Email = &email
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			httputil.WriteBadRequest(w, "validation failed: Name: required")
			return
		}
		update.Name = &name
	}

	client, err := h.store.UpdateClient(r.Context(), id, update)
	h.auditClient(r, auth.ActionClientUpdate, strconv.FormatInt(id, 10), err)
	if err != nil {
		writeError(w, r, err, "client")
		return
	}
	httputil.WriteSuccess(w, client)
}

func (h *ClientHandlers) auditClient(r *http.Request, action, id string, err error) {
	status := auth.StatusSuccess
	if err != nil {
		status = auth.StatusFailure
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       action,
		ResourceType: "client",
		ResourceID:   id,
		Status:       status,
		Err:          err,
	})
}
