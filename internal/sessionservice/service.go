// Package sessionservice implements the session store use cases shared by the
// HTTP API and the MCP server.
package sessionservice

import (
	"context"
	"strings"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/sessionstore"
	"github.com/starford/clueword/internal/sse"
)

// Publisher receives session change notifications.
type Publisher interface {
	PublishSessionEvent(kind string, id int64)
}

// Service coordinates validation, persistence and change notifications.
type Service struct {
	db     sessionstore.SessionIndex
	events Publisher
}

// NewService creates a new session service. events may be nil.
func NewService(db sessionstore.SessionIndex, events Publisher) *Service {
	return &Service{db: db, events: events}
}

// Save creates or updates a session. The bool reports whether it was created.
func (s *Service) Save(ctx context.Context, p models.SessionPayload) (*models.Session, bool, error) {
	p.SessionName = strings.TrimSpace(p.SessionName)
	if err := p.Validate(); err != nil {
		return nil, false, apperr.Invalid("session", err)
	}
	sess, created, err := s.db.Upsert(ctx, p)
	if err != nil {
		return nil, false, err
	}
	s.publish(sse.KindSaved, sess.ID)
	return sess, created, nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, id int64) (*models.Session, error) {
	return s.db.Get(ctx, id)
}

// List returns paginated summaries, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.SessionSummary, int, error) {
	return s.db.List(ctx, limit, offset)
}

// Delete removes a session.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.db.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(sse.KindDeleted, id)
	return nil
}

func (s *Service) publish(kind string, id int64) {
	if s.events != nil {
		s.events.PublishSessionEvent(kind, id)
	}
}
