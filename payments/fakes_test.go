package payments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wanjiru254/tutor_connect/audit"
	"github.com/wanjiru254/tutor_connect/models"
	"github.com/wanjiru254/tutor_connect/notifications"
)

type fakeAccountStore struct {
	mu       sync.Mutex
	teachers map[string]*models.Teacher
	audits   []models.ConnectAuditEntry
	applied  int
}

func newFakeAccountStore(teachers ...*models.Teacher) *fakeAccountStore {
	s := &fakeAccountStore{teachers: map[string]*models.Teacher{}}
	for _, t := range teachers {
		s.teachers[*t.StripeAccountID] = t
	}
	return s
}

func (s *fakeAccountStore) FindByStripeAccountID(_ context.Context, stripeAccountID string) (*models.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teacher, ok := s.teachers[stripeAccountID]
	if !ok {
		return nil, nil
	}
	copied := *teacher
	return &copied, nil
}

func (s *fakeAccountStore) ApplyConnectUpdate(_ context.Context, teacherID uuid.UUID, revision int, fields map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, teacher := range s.teachers {
		if teacher.UserID == teacherID {
			if teacher.ConnectRevision != revision {
				return false, nil
			}
			applyTeacherFields(teacher, fields)
			s.applied++
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAccountStore) UpdateConnect(_ context.Context, teacherID uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, teacher := range s.teachers {
		if teacher.UserID == teacherID {
			applyTeacherFields(teacher, fields)
			s.applied++
			return nil
		}
	}
	return nil
}

func (s *fakeAccountStore) AppendAudit(_ context.Context, entry *models.ConnectAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *fakeAccountStore) PendingSince(_ context.Context, cutoff int64) ([]models.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []models.Teacher
	for _, teacher := range s.teachers {
		if teacher.ConnectStatus != models.ConnectStatusPending {
			continue
		}
		if teacher.LastWebhookReceived == nil || teacher.LastWebhookReceived.Unix() < cutoff {
			stale = append(stale, *teacher)
		}
	}
	return stale, nil
}

func applyTeacherFields(teacher *models.Teacher, fields map[string]interface{}) {
	for key, value := range fields {
		switch key {
		case "connect_status":
			teacher.ConnectStatus = value.(string)
		case "health_score":
			teacher.HealthScore = value.(int)
		case "connect_verified":
			teacher.ConnectVerified = value.(bool)
		case "onboarding_complete":
			teacher.OnboardingComplete = value.(bool)
		case "requirements":
			teacher.Requirements = value.(models.StringList)
		case "capabilities":
			teacher.Capabilities = value.(models.StringMap)
		case "failure_reason":
			if value == nil {
				teacher.FailureReason = nil
			} else {
				reason := value.(string)
				teacher.FailureReason = &reason
			}
		case "onboarding_url":
			teacher.OnboardingURL = nil
		case "last_status_update":
			ts := value.(time.Time)
			teacher.LastStatusUpdate = &ts
		case "last_webhook_received":
			ts := value.(time.Time)
			teacher.LastWebhookReceived = &ts
		case "connect_revision":
			teacher.ConnectRevision = value.(int)
		}
	}
}

type fakePayoutStore struct {
	mu       sync.Mutex
	payouts  map[string]*models.Payout
	attempts []models.PayoutAttempt
	audits   []models.PayoutAuditEntry
	creates  int
}

func newFakePayoutStore() *fakePayoutStore {
	return &fakePayoutStore{payouts: map[string]*models.Payout{}}
}

func (s *fakePayoutStore) FindByStripePayoutID(_ context.Context, stripePayoutID string) (*models.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payout, ok := s.payouts[stripePayoutID]
	if !ok {
		return nil, nil
	}
	copied := *payout
	return &copied, nil
}

func (s *fakePayoutStore) CreateIfAbsent(_ context.Context, payout *models.Payout) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payouts[payout.StripePayoutID]; exists {
		return false, nil
	}
	payout.ID = uuid.New()
	payout.CreatedAt = time.Now()
	copied := *payout
	s.payouts[payout.StripePayoutID] = &copied
	s.creates++
	return true, nil
}

func (s *fakePayoutStore) Update(_ context.Context, payoutID uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, payout := range s.payouts {
		if payout.ID != payoutID {
			continue
		}
		for key, value := range fields {
			switch key {
			case "status":
				payout.Status = value.(string)
			case "failure_reason":
				reason := value.(string)
				payout.FailureReason = &reason
			case "failure_category":
				category := value.(string)
				payout.FailureCategory = &category
			case "completed_at":
				ts := value.(time.Time)
				payout.CompletedAt = &ts
			case "actual_arrival":
				ts := value.(time.Time)
				payout.ActualArrival = &ts
			case "processing_seconds":
				seconds := value.(float64)
				payout.ProcessingSeconds = &seconds
			}
		}
	}
	return nil
}

func (s *fakePayoutStore) AppendAttempt(_ context.Context, attempt *models.PayoutAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *fakePayoutStore) AppendAudit(_ context.Context, entry *models.PayoutAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *fakePayoutStore) CountAttempts(_ context.Context, payoutID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, attempt := range s.attempts {
		if attempt.PayoutID == payoutID {
			count++
		}
	}
	return count, nil
}

type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: map[string]bool{}}
}

func (l *fakeLedger) RecordIfAbsent(_ context.Context, event *models.WebhookEvent) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.seen[event.StripeEventID] {
		return false, nil
	}
	l.seen[event.StripeEventID] = true
	return true, nil
}

type fakeSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *fakeSink) Append(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

type fakeNotifier struct {
	mu       sync.Mutex
	requests []notifications.Request
}

func (n *fakeNotifier) Dispatch(_ context.Context, req notifications.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
}

func testTeacher(stripeAccountID, status string) *models.Teacher {
	accountID := stripeAccountID
	return &models.Teacher{
		UserID:          uuid.New(),
		Status:          "active",
		StripeAccountID: &accountID,
		ConnectStatus:   status,
		Capabilities:    models.StringMap{},
	}
}
