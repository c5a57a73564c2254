package postgres

import (
	"context"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
)

const clientColumns = `id, name, COALESCE(email, ''), document_id, COALESCE(phone, ''), created_at, updated_at`

func scanClient(row rowScanner) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.DocumentID, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns all clients ordered by name
func (s *Store) ListClients(ctx context.Context) (clients []*models.Client, err error) {
	ctx, span := startSpan(ctx, "ListClients", "clients")
	defer func() { endSpan(span, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, wrapError("list clients", err)
	}
	defer rows.Close()

	clients = make([]*models.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, wrapError("scan client", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list clients", err)
	}
	return clients, nil
}

// GetClient returns one client
func (s *Store) GetClient(ctx context.Context, id int64) (client *models.Client, err error) {
	ctx, span := startSpan(ctx, "GetClient", "clients")
	defer func() { endSpan(span, err) }()

	client, err = scanClient(s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, wrapError("get client", err)
	}
	return client, nil
}

// CreateClient inserts client and fills its id and timestamps. Empty email and phone
// are stored as NULL.
func (s *Store) CreateClient(ctx context.Context, client *models.Client) (err error) {
	ctx, span := startSpan(ctx, "CreateClient", "clients")
	defer func() { endSpan(span, err) }()

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO clients (name, email, document_id, phone)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at`,
		client.Name, client.Email, client.DocumentID, client.Phone,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	return wrapError("create client", err)
}

// UpdateClient changes the profile fields set in update
func (s *Store) UpdateClient(ctx context.Context, id int64, update models.ClientUpdate) (client *models.Client, err error) {
	ctx, span := startSpan(ctx, "UpdateClient", "clients")
	defer func() { endSpan(span, err) }()

	client, err = scanClient(s.db.QueryRowContext(ctx, `
		UPDATE clients SET
			name = COALESCE($2, name),
			email = CASE WHEN $3::text IS NULL THEN email ELSE NULLIF($3, '') END,
			phone = CASE WHEN $4::text IS NULL THEN phone ELSE NULLIF($4, '') END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, update.Name, update.Email, update.Phone,
	))
	if err != nil {
		return nil, wrapError("update client", err)
	}
	return client, nil
}
