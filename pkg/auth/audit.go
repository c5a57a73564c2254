package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/contextkeys"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// Audited admin actions
const (
	ActionReconcile      = "reconcile.run"
	ActionClientCreate   = "client.create"
	ActionClientUpdate   = "client.update"
	ActionPolicyCreate   = "policy.create"
	ActionPolicyRenew    = "policy.renew"
	ActionPolicyCancel   = "policy.cancel"
	ActionDocumentUpload = "document.upload"
	ActionDocumentDelete = "document.delete"
	ActionAuthFailure    = "auth.failure"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// AuditEvent is one security-relevant action
type AuditEvent struct {
	Action       string
	ResourceType string
	ResourceID   string
	Status       string
	Err          error
}

// AuditLogger writes audit events as structured log entries tagged audit=true
type AuditLogger struct {
	logger *observability.Logger
}

// NewAuditLogger creates an audit logger on top of logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithComponent("audit")}
}

// Log records event for the caller found in ctx
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	al.write(ctx, al.logger, event)
}

// LogFromRequest records an event for r, adding the client address
func (al *AuditLogger) LogFromRequest(r *http.Request, event AuditEvent) {
	al.write(r.Context(), al.logger.WithField("ip", ClientIP(r)), event)
}

func (al *AuditLogger) write(ctx context.Context, logger *observability.Logger, event AuditEvent) {
	fields := map[string]interface{}{
		"audit":         true,
		"action":        event.Action,
		"resource_type": event.ResourceType,
		"status":        event.Status,
	}
	if event.ResourceID != "" {
		fields["resource_id"] = event.ResourceID
	}
	if id := contextkeys.GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if authCtx, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext); ok && authCtx != nil {
		fields["account_id"] = authCtx.AccountID
	}

	log := logger.WithFields(fields)
	if event.Err != nil {
		log.WithError(event.Err).Warn("audit event")
		return
	}
	log.Info("audit event")
}

// ClientIP returns the originating address of r, honouring proxy headers
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
