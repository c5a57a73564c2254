package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

const documentColumns = `id, policy_id, object_key, file_name, content_type, size_bytes, uploaded_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	if err := row.Scan(&d.ID, &d.PolicyID, &d.ObjectKey, &d.FileName, &d.ContentType, &d.SizeBytes, &d.UploadedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// CreateDocument records an uploaded document
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) (err error) {
	ctx, span := startSpan(ctx, "CreateDocument", "policy_documents")
	defer func() { endSpan(span, err) }()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO policy_documents (id, policy_id, object_key, file_name, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`,
		doc.ID, doc.PolicyID, doc.ObjectKey, doc.FileName, doc.ContentType, doc.SizeBytes,
	).Scan(&doc.UploadedAt)
	return wrapError("create document", err)
}

// ListDocuments returns the documents of a policy, newest first
func (s *Store) ListDocuments(ctx context.Context, policyID string) (docs []*models.Document, err error) {
	ctx, span := startSpan(ctx, "ListDocuments", "policy_documents")
	defer func() { endSpan(span, err) }()

	docs = make([]*models.Document, 0)
	if !validIDs(policyID) {
		return docs, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM policy_documents
		WHERE policy_id = $1
		ORDER BY uploaded_at DESC, id`, policyID)
	if err != nil {
		return nil, wrapError("list documents", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, wrapError("scan document", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list documents", err)
	}
	return docs, nil
}

// GetDocument returns a document of policyID
func (s *Store) GetDocument(ctx context.Context, policyID, id string) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "GetDocument", "policy_documents")
	defer func() { endSpan(span, err) }()

	if !validIDs(policyID, id) {
		return nil, fmt.Errorf("get document %q: %w", id, storage.ErrNotFound)
	}

	doc, err = scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM policy_documents WHERE policy_id = $1 AND id = $2`, policyID, id))
	if err != nil {
		return nil, wrapError("get document", err)
	}
	return doc, nil
}

// DeleteDocument removes the metadata row of a document
func (s *Store) DeleteDocument(ctx context.Context, policyID, id string) (err error) {
	ctx, span := startSpan(ctx, "DeleteDocument", "policy_documents")
	defer func() { endSpan(span, err) }()

	if !validIDs(policyID, id) {
		return fmt.Errorf("delete document %q: %w", id, storage.ErrNotFound)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM policy_documents WHERE policy_id = $1 AND id = $2`, policyID, id)
	if err != nil {
		return wrapError("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted documents: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete document %q: %w", id, storage.ErrNotFound)
	}
	return nil
}
