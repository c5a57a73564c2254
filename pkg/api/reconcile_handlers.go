package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
)

// ReconcileHandlers exposes orphan profile reconciliation
type ReconcileHandlers struct {
	reconciler ReconcileRunner
	audit      *auth.AuditLogger
}

// NewReconcileHandlers creates reconciliation handlers
func NewReconcileHandlers(reconciler ReconcileRunner, audit *auth.AuditLogger) *ReconcileHandlers {
	return &ReconcileHandlers{reconciler: reconciler, audit: audit}
}

// RegisterRoutes registers reconciliation routes on an admin router
func (h *ReconcileHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/fix-orphan-profiles", h.fixOrphanProfiles).Methods(http.MethodPost)
}

// ParseReconcileOptions reads dryRun, limit and sendEmails from the query string.
// Only a literal "false" disables the dry run and only a literal "true" enables emails.
// A missing, unparsable or non-positive limit falls back to the default.
func ParseReconcileOptions(r *http.Request) reconcile.Options {
	q := r.URL.Query()
	opts := reconcile.DefaultOptions()
	opts.DryRun = q.Get("dryRun") != "false"
	opts.SendEmails = q.Get("sendEmails") == "true"
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}
	return opts
}

// fixOrphanProfiles handles POST /api/admin/fix-orphan-profiles
func (h *ReconcileHandlers) fixOrphanProfiles(w http.ResponseWriter, r *http.Request) {
	opts := ParseReconcileOptions(r)
	logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"dry_run":     opts.DryRun,
		"limit":       opts.Limit,
		"send_emails": opts.SendEmails,
	})

	report, err := h.reconciler.Run(r.Context(), opts)
	if err != nil {
		h.audit.LogFromRequest(r, auth.AuditEvent{
			Action:       auth.ActionReconcile,
			ResourceType: "profiles",
			Status:       auth.StatusFailure,
			Err:          err,
		})
		var setupErr *reconcile.SetupError
		if errors.As(err, &setupErr) {
			logger.WithError(err).Error("Reconciliation setup failed")
		} else {
			logger.WithError(err).Error("Reconciliation failed")
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       auth.ActionReconcile,
		ResourceType: "profiles",
		Status:       auth.StatusSuccess,
	})
	logger.WithFields(map[string]interface{}{
		"orphans":   report.Summary.TotalOrphansFound,
		"processed": report.Summary.Processed,
		"errors":    report.Summary.Errors,
	}).Info("Reconciliation finished")

	httputil.WriteSuccess(w, report.Response())
}
