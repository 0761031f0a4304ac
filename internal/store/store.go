package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"diuacm-web/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	SaveSession(ctx context.Context, s *model.Session) error
	FindSession(ctx context.Context, id string, now time.Time) (*model.Session, error)
	UpdateSessionUser(ctx context.Context, id, username string, user []byte) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	ReplaceSubscription(ctx context.Context, sub model.PushSubscription, eventIDs []int64) error
	FindSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscribedEventIDs(ctx context.Context) ([]int64, error)
	SubscriptionsForEvent(ctx context.Context, eventID int64) ([]model.PushSubscription, error)

	MarkReminded(ctx context.Context, eventID int64, title string, at time.Time) (bool, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// SaveSession inserts or overwrites a session.
func (s *gormStore) SaveSession(ctx context.Context, sess *model.Session) error {
	if err := s.db.WithContext(ctx).Save(sess).Error; err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

// FindSession returns the session with id unless it has expired.
func (s *gormStore) FindSession(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	var sess model.Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, now).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return &sess, nil
}

// UpdateSessionUser replaces the cached profile snapshot of a session.
func (s *gormStore) UpdateSessionUser(ctx context.Context, id, username string, user []byte) error {
	res := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"username": username, "user": user, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to update session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// PurgeExpiredSessions removes every session that expired before now.
func (s *gormStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReplaceSubscription upserts a push subscription and replaces the set of
// events it wants reminders for.
func (s *gormStore) ReplaceSubscription(ctx context.Context, sub model.PushSubscription, eventIDs []int64) error {
	sub.Events = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.EventSubscription{}).Error; err != nil {
			return fmt.Errorf("failed to clear subscribed events: %w", err)
		}

		if len(eventIDs) == 0 {
			return nil
		}
		seen := make(map[int64]bool, len(eventIDs))
		rows := make([]model.EventSubscription, 0, len(eventIDs))
		for _, id := range eventIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, model.EventSubscription{Endpoint: sub.Endpoint, EventID: id})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store subscribed events: %w", err)
		}
		return nil
	})
}

// FindSubscription loads a subscription with its subscribed events.
func (s *gormStore) FindSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Events").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.EventSubscription{}).Error; err != nil {
			return fmt.Errorf("failed to delete subscribed events: %w", err)
		}
		if err := tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// SubscribedEventIDs lists every event somebody wants a reminder for.
func (s *gormStore) SubscribedEventIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).
		Model(&model.EventSubscription{}).
		Distinct("event_id").
		Order("event_id").
		Pluck("event_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribed events: %w", err)
	}
	return ids, nil
}

// SubscriptionsForEvent returns the subscriptions waiting on eventID.
func (s *gormStore) SubscriptionsForEvent(ctx context.Context, eventID int64) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN event_subscriptions es ON es.endpoint = push_subscriptions.endpoint").
		Where("es.event_id = ?", eventID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for event %d: %w", eventID, err)
	}
	return subscriptions, nil
}

// MarkReminded records the reminder for eventID. It reports false when a
// reminder had already been recorded.
func (s *gormStore) MarkReminded(ctx context.Context, eventID int64, title string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Reminder{EventID: eventID, Title: title, SentAt: at})
	if res.Error != nil {
		return false, fmt.Errorf("failed to record reminder for event %d: %w", eventID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
