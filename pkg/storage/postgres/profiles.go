package postgres

import (
	"context"
	"database/sql"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
)

const profileColumns = `id, client_id, role, must_change_password, created_at`

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p        models.Profile
		clientID sql.NullInt64
	)
	if err := row.Scan(&p.ID, &clientID, &p.Role, &p.MustChangePassword, &p.CreatedAt); err != nil {
		return nil, err
	}
	if clientID.Valid {
		id := clientID.Int64
		p.ClientID = &id
	}
	return &p, nil
}

// ListProfiles returns every access profile
func (s *Store) ListProfiles(ctx context.Context) (profiles []*models.Profile, err error) {
	ctx, span := startSpan(ctx, "ListProfiles", "profiles")
	defer func() { endSpan(span, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles`)
	if err != nil {
		return nil, wrapError("list profiles", err)
	}
	defer rows.Close()

	profiles = make([]*models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, wrapError("scan profile", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list profiles", err)
	}
	return profiles, nil
}

// GetProfile returns the profile of an identity-provider account
func (s *Store) GetProfile(ctx context.Context, accountID string) (profile *models.Profile, err error) {
	ctx, span := startSpan(ctx, "GetProfile", "profiles")
	defer func() { endSpan(span, err) }()

	profile, err = scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, accountID))
	if err != nil {
		return nil, wrapError("get profile", err)
	}
	return profile, nil
}

// GetProfileByClient returns the profile linked to a client
func (s *Store) GetProfileByClient(ctx context.Context, clientID int64) (profile *models.Profile, err error) {
	ctx, span := startSpan(ctx, "GetProfileByClient", "profiles")
	defer func() { endSpan(span, err) }()

	profile, err = scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE client_id = $1`, clientID))
	if err != nil {
		return nil, wrapError("get profile by client", err)
	}
	return profile, nil
}

// InsertProfile writes a new profile. A second profile for the same account or client
// fails with storage.ErrConflict.
func (s *Store) InsertProfile(ctx context.Context, profile *models.Profile) (err error) {
	ctx, span := startSpan(ctx, "InsertProfile", "profiles")
	defer func() { endSpan(span, err) }()

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, client_id, role, must_change_password)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		profile.ID, profile.ClientID, string(profile.Role), profile.MustChangePassword,
	).Scan(&profile.CreatedAt)
	return wrapError("insert profile", err)
}
