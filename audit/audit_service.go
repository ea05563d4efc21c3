package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wanjiru254/tutor_connect/models"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Entry is a single audit log record to append. Entries are write-only from
// the caller's point of view and immutable once stored.
type Entry struct {
	Action       string
	Category     string
	Level        string
	Message      string
	UserID       *uuid.UUID
	ResourceType string
	ResourceID   string
	Metadata     map[string]interface{}
}

// Sink accepts audit entries. Appending is best-effort: a failing sink must
// never block or fail the caller.
type Sink interface {
	Append(ctx context.Context, e Entry)
}

// Service writes audit entries to the audit_logs table through a bounded
// queue so slow storage cannot hold up webhook acknowledgment.
type Service struct {
	db    *gorm.DB
	queue chan Entry
	done  chan struct{}
}

const writeTimeout = 10 * time.Second

func NewService(db *gorm.DB) *Service {
	s := &Service{
		db:    db,
		queue: make(chan Entry, 256),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Append enqueues the entry without blocking. When the queue is full the
// entry is written inline instead of being dropped.
func (s *Service) Append(ctx context.Context, e Entry) {
	if e.Level == "" {
		e.Level = LevelInfo
	}
	select {
	case s.queue <- e:
	default:
		log.Println("⚠️ Audit queue full, writing entry inline")
		s.write(e)
	}
}

// Close drains the queue and stops the worker.
func (s *Service) Close() {
	close(s.queue)
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)
	for e := range s.queue {
		s.write(e)
	}
}

func (s *Service) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	row := models.AuditLog{
		Action:       e.Action,
		Category:     e.Category,
		Level:        e.Level,
		Message:      e.Message,
		UserID:       e.UserID,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Metadata:     models.JSONMap(e.Metadata),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("🔥 Failed to write audit log entry %q: %v", e.Action, err)
	}
}
