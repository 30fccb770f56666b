package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records session-engine transitions for internal ops.
//
// Callers treat recording as best-effort: a failed append is logged and never
// propagated into the session flow itself.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogFreshLogin records a fresh-login classification and its side effects.
func (s *Service) LogFreshLogin(ctx context.Context, subjectID, email string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeFreshLogin,
		SubjectID: subjectID,
		Email:     email,
		Message:   "fresh login classified, bootstrap triggered",
	})
}

// LogTokenRenewed records a successful renewal broadcast.
func (s *Service) LogTokenRenewed(ctx context.Context, subjectID, email string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeTokenRenewed,
		SubjectID: subjectID,
		Email:     email,
		Message:   "identity token renewed",
	})
}

// LogForcedLogin records a fallback to full re-authentication.
func (s *Service) LogForcedLogin(ctx context.Context, email string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeForcedLogin,
		Email:   email,
		Message: "silent renewal impossible, full login forced",
	})
}

// LogProfileCreated records the one-time bootstrap create.
func (s *Service) LogProfileCreated(ctx context.Context, email string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeProfileCreated,
		Email:   email,
		Message: "profile created by bootstrap",
	})
}

// LogSelectionChanged records a tenant-selection transition.
func (s *Service) LogSelectionChanged(ctx context.Context, email, tenantID string) error {
	return s.Append(ctx, Event{
		Type:     EventTypeSelectionChanged,
		Email:    email,
		TenantID: tenantID,
		Message:  "selected tenant changed",
	})
}
