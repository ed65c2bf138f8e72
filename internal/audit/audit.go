// Package audit publishes console actions as JSON events.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/ledgeradmin/internal/log"
)

// Event types.
const (
	EventLogin       = "session.login"
	EventLogout      = "session.logout"
	EventUserDeleted = "user.deleted"
	EventBookDeleted = "book.deleted"
)

// Event is one audited action.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent returns an event with a fresh ID.
func NewEvent(typ, subject string, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Subject:   subject,
		Timestamp: at.UTC(),
	}
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Recorder stamps and publishes events. Failures are logged and never
// returned. A nil Recorder does nothing.
type Recorder struct {
	pub   Publisher
	log   *log.Logger
	now   func() time.Time
	actor func() string
}

// NewRecorder returns a recorder over pub. actor may be nil.
func NewRecorder(pub Publisher, logger *log.Logger, actor func() string) *Recorder {
	if pub == nil {
		pub = Nop{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Recorder{
		pub:   pub,
		log:   logger.WithComponent(log.ComponentAudit),
		now:   time.Now,
		actor: actor,
	}
}

// Record publishes an event of typ about subject.
func (r *Recorder) Record(ctx context.Context, typ, subject string) {
	if r == nil {
		return
	}
	e := NewEvent(typ, subject, r.now())
	if r.actor != nil {
		e.Actor = r.actor()
	}
	if err := r.pub.Publish(ctx, e); err != nil {
		r.log.WarnContext(ctx, "audit publish failed",
			log.FieldEvent, typ,
			log.FieldError, err)
		return
	}
	r.log.DebugContext(ctx, "audit event published", log.FieldEvent, typ, "event_id", e.ID)
}

// Close closes the underlying publisher.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.pub.Close()
}
