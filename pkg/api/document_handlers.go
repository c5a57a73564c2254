package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage/objects"
)

const (
	// multipartOverhead is allowed on top of the file size for boundaries and headers
	multipartOverhead = 1 << 20
	// multipartMemory is kept in memory while parsing; larger parts spill to disk
	multipartMemory = 8 << 20
)

// DocumentHandlers manages files attached to policies
type DocumentHandlers struct {
	store     storage.Store
	objects   storage.ObjectStore
	audit     *auth.AuditLogger
	maxUpload int64
	linkTTL   time.Duration
}

// NewDocumentHandlers creates document handlers. linkTTL is only reported to callers;
// the object store decides how long its presigned links live.
func NewDocumentHandlers(store storage.Store, objectStore storage.ObjectStore, audit *auth.AuditLogger, maxUpload int64, linkTTL time.Duration) *DocumentHandlers {
	if linkTTL <= 0 {
		linkTTL = objects.DefaultPresignTTL
	}
	return &DocumentHandlers{
		store:     store,
		objects:   objectStore,
		audit:     audit,
		maxUpload: maxUpload,
		linkTTL:   linkTTL,
	}
}

// RegisterRoutes registers document routes on an admin router
func (h *DocumentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/policies/{id}/documents", h.listDocuments).Methods(http.MethodGet)
	router.HandleFunc("/policies/{id}/documents", h.uploadDocument).Methods(http.MethodPost)
	router.HandleFunc("/policies/{id}/documents/{docID}", h.deleteDocument).Methods(http.MethodDelete)
	router.HandleFunc("/policies/{id}/documents/{docID}/download", h.downloadDocument).Methods(http.MethodGet)
}

// listDocuments handles GET /api/admin/policies/{id}/documents
func (h *DocumentHandlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["id"]
	if _, err := h.store.GetPolicy(r.Context(), policyID); err != nil {
		writeError(w, r, err, "policy")
		return
	}
	h.writeDocuments(w, r, policyID)
}

func (h *DocumentHandlers) writeDocuments(w http.ResponseWriter, r *http.Request, policyID string) {
	docs, err := h.store.ListDocuments(r.Context(), policyID)
	if err != nil {
		writeError(w, r, err, "document")
		return
	}
	httputil.WriteSuccess(w, docs)
}

// downloadDocument handles GET /api/admin/policies/{id}/documents/{docID}/download
func (h *DocumentHandlers) downloadDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.writeDownload(w, r, vars["id"], vars["docID"])
}

func (h *DocumentHandlers) writeDownload(w http.ResponseWriter, r *http.Request, policyID, docID string) {
	doc, err := h.store.GetDocument(r.Context(), policyID, docID)
	if err != nil {
		writeError(w, r, err, "document")
		return
	}
	url, err := h.objects.PresignGet(r.Context(), doc.ObjectKey, doc.FileName)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("document_id", doc.ID).Error("Failed to presign document")
		httputil.WriteInternalError(w, fmt.Errorf("failed to create download link"))
		return
	}
	httputil.WriteSuccess(w, DownloadResponse{
		URL:       url,
		FileName:  doc.FileName,
		ExpiresIn: int(h.linkTTL.Seconds()),
	})
}

// uploadDocument handles POST /api/admin/policies/{id}/documents. The file is sent in
// the multipart field "file".
func (h *DocumentHandlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	policyID := mux.Vars(r)["id"]
	logger := observability.FromContext(r.Context()).WithField("policy_id", policyID)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeTooLarge(w)
			return
		}
		httputil.WriteBadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		h.writeTooLarge(w)
		return
	}
	if header.Size == 0 {
		httputil.WriteBadRequest(w, "file is empty")
		return
	}

	if _, err := h.store.GetPolicy(r.Context(), policyID); err != nil {
		writeError(w, r, err, "policy")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc := &models.Document{
		PolicyID:    policyID,
		ObjectKey:   objects.DocumentKey(policyID, header.Filename),
		FileName:    objects.SanitizeFileName(header.Filename),
		ContentType: contentType,
		SizeBytes:   header.Size,
	}

	if err := h.objects.PutObject(r.Context(), doc.ObjectKey, file, doc.SizeBytes, doc.ContentType); err != nil {
		logger.WithError(err).Error("Failed to store document")
		h.auditDocument(r, auth.ActionDocumentUpload, policyID, err)
		httputil.WriteInternalError(w, fmt.Errorf("failed to store document"))
		return
	}

	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		if delErr := h.objects.DeleteObject(r.Context(), doc.ObjectKey); delErr != nil {
			logger.WithError(delErr).WithField("object_key", doc.ObjectKey).Error("Failed to remove orphaned object")
		}
		h.auditDocument(r, auth.ActionDocumentUpload, policyID, err)
		writeError(w, r, err, "document")
		return
	}

	h.auditDocument(r, auth.ActionDocumentUpload, doc.ID, nil)
	httputil.WriteCreated(w, doc)
}

func (h *DocumentHandlers) writeTooLarge(w http.ResponseWriter) {
	httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("file exceeds the %d MiB limit", h.maxUpload>>20))
}

// deleteDocument handles DELETE /api/admin/policies/{id}/documents/{docID}. The object is
// removed before the row.
func (h *DocumentHandlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	policyID, docID := vars["id"], vars["docID"]

	doc, err := h.store.GetDocument(r.Context(), policyID, docID)
	if err != nil {
		writeError(w, r, err, "document")
		return
	}

	if err := h.objects.DeleteObject(r.Context(), doc.ObjectKey); err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("object_key", doc.ObjectKey).Error("Failed to delete object")
		h.auditDocument(r, auth.ActionDocumentDelete, docID, err)
		httputil.WriteInternalError(w, fmt.Errorf("failed to delete document"))
		return
	}

	err = h.store.DeleteDocument(r.Context(), policyID, docID)
	h.auditDocument(r, auth.ActionDocumentDelete, docID, err)
	if err != nil {
		writeError(w, r, err, "document")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *DocumentHandlers) auditDocument(r *http.Request, action, id string, err error) {
	status := auth.StatusSuccess
	if err != nil {
		status = auth.StatusFailure
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       action,
		ResourceType: "document",
		ResourceID:   id,
		Status:       status,
		Err:          err,
	})
}
