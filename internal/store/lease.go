package store

import (
	"context"
	"time"

	"github.com/fieldport/fieldsync/internal/errors"
)

// AcquireLease claims a named lease for owner until now+ttl. It reports
// false when another live owner holds the lease; expired leases and the
// caller's own lease are reclaimed. The in-process single-flight flag keeps
// one pass per context; the lease keeps the agent and the daemon from
// draining the queue at the same moment.
func (s *Store) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO sync_leases (name, owner, expires_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
	WHERE sync_leases.expires_at < ? OR sync_leases.owner = excluded.owner`,
		name, owner, now+int64(ttl.Seconds()), now)
	if err != nil {
		return false, errors.Wrap(errors.ErrStore, "acquire lease", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(errors.ErrStore, "acquire lease result", err)
	}
	return n > 0, nil
}

// ReleaseLease drops the lease if owner still holds it. Releasing a lease
// someone else took over (after expiry) is a no-op.
func (s *Store) ReleaseLease(ctx context.Context, name, owner string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_leases WHERE name = ? AND owner = ?", name, owner); err != nil {
		return errors.Wrap(errors.ErrStore, "release lease", err)
	}
	return nil
}
