package sessionstore

import (
	"context"

	"github.com/starford/clueword/internal/models"
)

// SessionIndex defines the persistence operations on sessions.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type SessionIndex interface {
	Upsert(ctx context.Context, p models.SessionPayload) (*models.Session, bool, error)
	Get(ctx context.Context, id int64) (*models.Session, error)
	List(ctx context.Context, limit, offset int) ([]models.SessionSummary, int, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// Verify *DB satisfies SessionIndex at compile time.
var _ SessionIndex = (*DB)(nil)
