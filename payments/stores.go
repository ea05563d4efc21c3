package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wanjiru254/tutor_connect/models"
)

// AccountStore is the persistence boundary for connected payout accounts.
type AccountStore interface {
	// FindByStripeAccountID returns (nil, nil) when no teacher owns the
	// account: a missing account is a skip condition, not an error.
	FindByStripeAccountID(ctx context.Context, stripeAccountID string) (*models.Teacher, error)
	// ApplyConnectUpdate performs a compare-and-swap write: the update only
	// lands when the stored connect_revision still matches. Returns whether
	// the write was applied.
	ApplyConnectUpdate(ctx context.Context, teacherID uuid.UUID, revision int, fields map[string]interface{}) (bool, error)
	// UpdateConnect writes unconditionally, for transitions that must never
	// be lost to a revision race (deauthorization, capability updates).
	UpdateConnect(ctx context.Context, teacherID uuid.UUID, fields map[string]interface{}) error
	AppendAudit(ctx context.Context, entry *models.ConnectAuditEntry) error
	// PendingSince lists teachers whose accounts are still pending and have
	// not seen a webhook since the cutoff.
	PendingSince(ctx context.Context, cutoff int64) ([]models.Teacher, error)
}

// PayoutStore is the persistence boundary for payout records.
type PayoutStore interface {
	// FindByStripePayoutID returns (nil, nil) when the payout is unknown.
	FindByStripePayoutID(ctx context.Context, stripePayoutID string) (*models.Payout, error)
	// CreateIfAbsent inserts the payout unless one already exists for its
	// Stripe payout id. Returns whether a row was inserted. The uniqueness
	// guarantee lives in the database, so concurrent duplicate deliveries
	// collapse to a single row.
	CreateIfAbsent(ctx context.Context, payout *models.Payout) (bool, error)
	Update(ctx context.Context, payoutID uuid.UUID, fields map[string]interface{}) error
	AppendAttempt(ctx context.Context, attempt *models.PayoutAttempt) error
	AppendAudit(ctx context.Context, entry *models.PayoutAuditEntry) error
	CountAttempts(ctx context.Context, payoutID uuid.UUID) (int64, error)
}

// EventLedger records processed webhook event ids.
type EventLedger interface {
	// RecordIfAbsent returns whether the event id was fresh. A false return
	// means this delivery is a replay and must not be reprocessed.
	RecordIfAbsent(ctx context.Context, event *models.WebhookEvent) (bool, error)
}

type GormAccountStore struct {
	DB *gorm.DB
}

func (s *GormAccountStore) FindByStripeAccountID(ctx context.Context, stripeAccountID string) (*models.Teacher, error) {
	var teacher models.Teacher
	err := s.DB.WithContext(ctx).Where("stripe_account_id = ?", stripeAccountID).First(&teacher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &teacher, nil
}

func (s *GormAccountStore) ApplyConnectUpdate(ctx context.Context, teacherID uuid.UUID, revision int, fields map[string]interface{}) (bool, error) {
	result := s.DB.WithContext(ctx).Model(&models.Teacher{}).
		Where("user_id = ? AND connect_revision = ?", teacherID, revision).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormAccountStore) UpdateConnect(ctx context.Context, teacherID uuid.UUID, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&models.Teacher{}).
		Where("user_id = ?", teacherID).
		Updates(fields).Error
}

func (s *GormAccountStore) AppendAudit(ctx context.Context, entry *models.ConnectAuditEntry) error {
	return s.DB.WithContext(ctx).Create(entry).Error
}

func (s *GormAccountStore) PendingSince(ctx context.Context, cutoff int64) ([]models.Teacher, error) {
	var teachers []models.Teacher
	err := s.DB.WithContext(ctx).
		Where("connect_status = ? AND stripe_account_id IS NOT NULL", models.ConnectStatusPending).
		Where("last_webhook_received IS NULL OR last_webhook_received < to_timestamp(?)", cutoff).
		Find(&teachers).Error
	return teachers, err
}

type GormPayoutStore struct {
	DB *gorm.DB
}

func (s *GormPayoutStore) FindByStripePayoutID(ctx context.Context, stripePayoutID string) (*models.Payout, error) {
	var payout models.Payout
	err := s.DB.WithContext(ctx).Where("stripe_payout_id = ?", stripePayoutID).First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (s *GormPayoutStore) CreateIfAbsent(ctx context.Context, payout *models.Payout) (bool, error) {
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_payout_id"}},
		DoNothing: true,
	}).Create(payout)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormPayoutStore) Update(ctx context.Context, payoutID uuid.UUID, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ?", payoutID).
		Updates(fields).Error
}

func (s *GormPayoutStore) AppendAttempt(ctx context.Context, attempt *models.PayoutAttempt) error {
	return s.DB.WithContext(ctx).Create(attempt).Error
}

func (s *GormPayoutStore) AppendAudit(ctx context.Context, entry *models.PayoutAuditEntry) error {
	return s.DB.WithContext(ctx).Create(entry).Error
}

func (s *GormPayoutStore) CountAttempts(ctx context.Context, payoutID uuid.UUID) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.PayoutAttempt{}).
		Where("payout_id = ?", payoutID).
		Count(&count).Error
	return count, err
}

type GormEventLedger struct {
	DB *gorm.DB
}

func (l *GormEventLedger) RecordIfAbsent(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	result := l.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
