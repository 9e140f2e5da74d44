package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/types"
)

// Repository is the sole entry point into durable storage. All writes
// that touch a single user go through userLocks so that two concurrent
// requests from the same user never interleave (e.g. two analyze-file
// calls racing to append an AnalysisRecord).
type Repository struct {
	db        *gorm.DB
	logger    *zap.Logger
	userLocks *keyedMutex
}

// NewRepository wraps an already-migrated *gorm.DB.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:        db,
		logger:    logger.With(zap.String("component", "store")),
		userLocks: newKeyedMutex(),
	}
}

// UpsertUser inserts a new user or updates the mutable identity fields
// (display name, picture, last login) of an existing one, keyed by ID.
func (r *Repository) UpsertUser(ctx context.Context, u *User) (*User, error) {
	unlock := r.userLocks.lock(u.ID)
	defer unlock()

	var existing User
	err := r.db.WithContext(ctx).First(&existing, "id = ?", u.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now()
		}
		u.LastLoginAt = time.Now()
		if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
			return nil, types.NewError(types.ErrConflictingUpdate, "create user failed").WithCause(err)
		}
		return u, nil
	case err != nil:
		return nil, types.NewError(types.ErrConflictingUpdate, "lookup user failed").WithCause(err)
	}

	existing.DisplayName = u.DisplayName
	existing.PictureURL = u.PictureURL
	existing.Email = u.Email
	existing.LastLoginAt = time.Now()
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, types.NewError(types.ErrConflictingUpdate, "update user failed").WithCause(err)
	}
	return &existing, nil
}

// GetUser fetches a user by ID, returning types.ErrNotFound when absent.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrNotFound, "user not found").WithHTTPStatus(404)
		}
		return nil, types.NewError(types.ErrConflictingUpdate, "lookup user failed").WithCause(err)
	}
	return &u, nil
}

// SetKeySlot writes (or clears, when value == "") the API key stored in
// the given slot (1..3) for a user.
func (r *Repository) SetKeySlot(ctx context.Context, userID string, slot int, value string) (*User, error) {
	if slot < 1 || slot > 3 {
		return nil, types.NewError(types.ErrInputTooLarge, "invalid key slot").WithHTTPStatus(400)
	}

	unlock := r.userLocks.lock(userID)
	defer unlock()

	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var stored *string
	if value != "" {
		stored = &value
	}
	u.SetKeySlot(slot, stored)

	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		return nil, types.NewError(types.ErrConflictingUpdate, "set key slot failed").WithCause(err)
	}
	return u, nil
}

// ListAnalyses returns a user's analysis history, newest first.
func (r *Repository) ListAnalyses(ctx context.Context, userID string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []AnalysisRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, types.NewError(types.ErrConflictingUpdate, "list analyses failed").WithCause(err)
	}
	return out, nil
}

// AppendAnalysis persists a completed analysis, assigning it a fresh ID
// and timestamp if unset.
func (r *Repository) AppendAnalysis(ctx context.Context, rec *AnalysisRecord) (*AnalysisRecord, error) {
	unlock := r.userLocks.lock(rec.UserID)
	defer unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, types.NewError(types.ErrConflictingUpdate, "append analysis failed").WithCause(err)
	}
	return rec, nil
}

// AppendLetter persists a composed letter.
func (r *Repository) AppendLetter(ctx context.Context, rec *LetterRecord) (*LetterRecord, error) {
	unlock := r.userLocks.lock(rec.UserID)
	defer unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, types.NewError(types.ErrConflictingUpdate, "append letter failed").WithCause(err)
	}
	return rec, nil
}

// ListLetters returns a user's saved letters, newest first, optionally
// filtered by a free-text match against subject/body (letter-search).
func (r *Repository) ListLetters(ctx context.Context, userID, search string, limit int) ([]LetterRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("subject LIKE ? OR body_de LIKE ?", like, like)
	}
	var out []LetterRecord
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, types.NewError(types.ErrConflictingUpdate, "list letters failed").WithCause(err)
	}
	return out, nil
}

// GetAppText returns one admin-editable UI string by key.
func (r *Repository) GetAppText(ctx context.Context, key string) (*AppText, error) {
	var t AppText
	if err := r.db.WithContext(ctx).First(&t, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrNotFound, "app text not found").WithHTTPStatus(404)
		}
		return nil, types.NewError(types.ErrConflictingUpdate, "lookup app text failed").WithCause(err)
	}
	return &t, nil
}

// PutAppText upserts one admin-editable UI string.
func (r *Repository) PutAppText(ctx context.Context, t *AppText) error {
	t.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).
		Clauses(onConflictUpdateAppText()).
		Create(t).Error
	if err != nil {
		return types.NewError(types.ErrConflictingUpdate, "put app text failed").WithCause(err)
	}
	return nil
}
