package events

import (
	"context"
	"time"
)

/* ========================================================================
 * Audit Events
 * ========================================================================
 * Fire-and-forget audit trail: scope decisions, policy denials, tenant
 * administration. Delivery is best effort; the request path never
 * blocks on the broker.
 * ======================================================================== */

// Event types.
const (
	TypeAccessDenied   = "access.denied"
	TypeLogin          = "auth.login"
	TypeLogout         = "auth.logout"
	TypeCompanyCreated = "company.created"
	TypeCompanyUpdated = "company.updated"
	TypeCompanyDeleted = "company.deleted"
)

// Event is one audit record.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    int64          `json:"actor_id,omitempty"`
	CompanyID  *int64         `json:"company_id,omitempty"`
	Entity     string         `json:"entity,omitempty"`
	Action     string         `json:"action,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Publisher emits audit events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event. Used when the event stream is disabled.
type Noop struct{}

// NewNoop builds a no-op publisher.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) Publish(context.Context, Event) error { return nil }
func (*Noop) Close() error                         { return nil }
