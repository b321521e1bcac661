package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DefaultTimeout bounds each Postgres call when the config sets none.
const DefaultTimeout = 5 * time.Second

// Postgres is the shared-server journal.
type Postgres struct {
	sqlStore
}

func NewPostgres(dsn string, timeout time.Duration) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	j := newPostgres(db, timeout)
	if err := j.migrate(postgresSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func newPostgres(db *sqlx.DB, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Postgres{sqlStore{db: db, timeout: timeout, isDup: pgDup}}
}

// pgDup matches unique_violation.
func pgDup(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23505"
}
