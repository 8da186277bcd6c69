// Package profiles stores each account's display identity.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/session"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound          = errors.New("profile not found")
	ErrDisplayNameNeeded = errors.New("display name is required")
)

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p := new(models.Profile)
	err := s.db.NewSelect().
		Model(p).
		Where("pr.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return p, nil
}

// Lookup returns the profiles of ids that have one, keyed by user id.
func (s *Store) Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	out := make(map[uuid.UUID]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Profile
	err := s.db.NewSelect().
		Model(&rows).
		Where("pr.user_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	for _, p := range rows {
		out[p.UserID] = p
	}
	return out, nil
}

type Fields struct {
	DisplayName  string  `json:"display_name"`
	Bio          *string `json:"bio"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
}

// Upsert writes the profile owned by sess. A blank contact email falls back
// to the session's login email.
func (s *Store) Upsert(ctx context.Context, sess session.Session, f Fields, now time.Time) (*models.Profile, error) {
	name := strings.TrimSpace(f.DisplayName)
	if name == "" {
		return nil, ErrDisplayNameNeeded
	}

	email := blankToNil(f.ContactEmail)
	if email == nil && sess.Email != "" {
		email = &sess.Email
	}

	p := &models.Profile{
		UserID:       sess.AccountID,
		DisplayName:  name,
		Bio:          blankToNil(f.Bio),
		ContactEmail: email,
		ContactPhone: blankToNil(f.ContactPhone),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}

	_, err := s.db.NewInsert().
		Model(p).
		On("CONFLICT (user_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("bio = EXCLUDED.bio").
		Set("contact_email = EXCLUDED.contact_email").
		Set("contact_phone = EXCLUDED.contact_phone").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	return s.Get(ctx, sess.AccountID)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
