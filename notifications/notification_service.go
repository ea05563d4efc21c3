package notifications

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wanjiru254/tutor_connect/models"
)

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Request is a fire-and-forget notification to create for a user. Delivery
// failures are logged and never surfaced to the caller.
type Request struct {
	Type                string
	Priority            string
	UserID              uuid.UUID
	UserType            string
	Title               string
	Body                string
	RelatedResourceType string
	RelatedResourceID   string
	Metadata            map[string]interface{}
}

// Dispatcher accepts notification requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request)
}

// QueueDispatcher stores notifications and sends email for high-priority
// ones, running deliveries through a bounded queue off the request path.
type QueueDispatcher struct {
	db    *gorm.DB
	queue chan Request
	done  chan struct{}
}

const deliverTimeout = 10 * time.Second

func NewQueueDispatcher(db *gorm.DB) *QueueDispatcher {
	d := &QueueDispatcher{
		db:    db,
		queue: make(chan Request, 256),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch enqueues the request without blocking. A full queue degrades to
// inline delivery instead of dropping the notification.
func (d *QueueDispatcher) Dispatch(ctx context.Context, req Request) {
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	select {
	case d.queue <- req:
	default:
		log.Println("⚠️ Notification queue full, delivering inline")
		d.deliver(req)
	}
}

// Close drains the queue and stops the worker.
func (d *QueueDispatcher) Close() {
	close(d.queue)
	<-d.done
}

func (d *QueueDispatcher) run() {
	defer close(d.done)
	for req := range d.queue {
		d.deliver(req)
	}
}

func (d *QueueDispatcher) deliver(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	row := models.Notification{
		UserID:   req.UserID,
		UserType: req.UserType,
		Type:     req.Type,
		Priority: req.Priority,
		Title:    req.Title,
		Body:     req.Body,
		Metadata: models.JSONMap(req.Metadata),
	}
	if req.RelatedResourceType != "" {
		row.RelatedResourceType = &req.RelatedResourceType
	}
	if req.RelatedResourceID != "" {
		row.RelatedResourceID = &req.RelatedResourceID
	}

	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("🔥 Failed to store notification %q for user %s: %v", req.Type, req.UserID, err)
		return
	}

	// Urgent and high-priority notifications also go out by email.
	if req.Priority != PriorityHigh && req.Priority != PriorityUrgent {
		return
	}

	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", req.UserID).Error; err != nil {
		log.Printf("Could not load user %s for notification email: %v", req.UserID, err)
		return
	}

	go SendEmail(user.FullName, user.Email, req.Title, renderEmail(req.Title, req.Body, req.Priority))
}
