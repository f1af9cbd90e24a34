package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookshop/pkg/domain"
)

// GormSessionStore keeps sessions in a Postgres table with a JSONB payload.
// Used when no Redis address is configured; shares the catalog connection.
type GormSessionStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewGormSessionStore runs the session table migration.
func NewGormSessionStore(db *gorm.DB, ttl time.Duration) (*GormSessionStore, error) {
	if err := db.AutoMigrate(&SessionModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate sessions: %w", err)
	}
	return &GormSessionStore{db: db, ttl: ttl}, nil
}

// Get loads a session, treating expired rows as absent.
func (s *GormSessionStore) Get(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	if !model.ExpiresAt.IsZero() && model.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.db.Delete(&SessionModel{}, "id = ?", id).Error
		return domain.Session{}, false, nil
	}
	var sess domain.Session
	if err := json.Unmarshal(model.Data, &sess); err != nil {
		return domain.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

// Put upserts the session row and refreshes its expiry.
func (s *GormSessionStore) Put(id string, sess domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	now := time.Now().UTC()
	model := SessionModel{
		ID:        id,
		Data:      raw,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&model).Error
}

// Destroy removes the session row.
func (s *GormSessionStore) Destroy(id string) error {
	return s.db.Delete(&SessionModel{}, "id = ?", id).Error
}
