package persistence

import (
	"context"
	"time"

	"github.com/nash87/parkhub/internal/model"
)

// PutSession stores the session under its token.
func (t *Txn) PutSession(ctx context.Context, session model.Session) error {
	sessions, err := t.table(ctx, tableSessions)
	if err != nil {
		return err
	}
	blob, err := t.repo.sessions.Encode(session)
	if err != nil {
		return err
	}
	return sessions.Put(ctx, session.Token, blob)
}

// GetSession returns the session for token iff it has not expired at the
// given instant. An expired session behaves exactly like a missing one and
// is not deleted on read; removal is the cleanup job's concern.
func (t *Txn) GetSession(ctx context.Context, token string, now time.Time) (model.Session, error) {
	sessions, err := t.table(ctx, tableSessions)
	if err != nil {
		return model.Session{}, err
	}
	blob, err := sessions.Get(ctx, token)
	if err != nil {
		return model.Session{}, mapKeyErr(err)
	}
	session, err := t.repo.sessions.Decode(blob)
	if err != nil {
		return model.Session{}, err
	}
	if !session.Valid(now) {
		return model.Session{}, ErrNotFound
	}
	return session, nil
}

// DeleteSession removes the session and reports whether it existed.
func (t *Txn) DeleteSession(ctx context.Context, token string) (bool, error) {
	sessions, err := t.table(ctx, tableSessions)
	if err != nil {
		return false, err
	}
	return sessions.Delete(ctx, token)
}

// DeleteExpiredSessions removes every session whose expiry is at or before
// the given instant and returns how many were removed.
func (t *Txn) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	sessions, err := t.table(ctx, tableSessions)
	if err != nil {
		return 0, err
	}
	removed := 0
	err = sessions.ForEach(ctx, func(token string, blob []byte) error {
		session, err := t.repo.sessions.Decode(blob)
		if err != nil {
			return err
		}
		if session.ExpiresAt.After(now) {
			return nil
		}
		if _, err := sessions.Delete(ctx, token); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// DeleteSessionsForUser removes every session belonging to the user.
func (t *Txn) DeleteSessionsForUser(ctx context.Context, userID string) (int, error) {
	sessions, err := t.table(ctx, tableSessions)
	if err != nil {
		return 0, err
	}
	removed := 0
	err = sessions.ForEach(ctx, func(token string, blob []byte) error {
		session, err := t.repo.sessions.Decode(blob)
		if err != nil {
			return err
		}
		if session.UserID != userID {
			return nil
		}
		if _, err := sessions.Delete(ctx, token); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// PutSession is the one-shot write form of Txn.PutSession.
func (r *Repository) PutSession(ctx context.Context, session model.Session) error {
	return r.Update(ctx, func(t *Txn) error {
		return t.PutSession(ctx, session)
	})
}

// GetSession is the one-shot read form of Txn.GetSession.
func (r *Repository) GetSession(ctx context.Context, token string, now time.Time) (model.Session, error) {
	var session model.Session
	err := r.View(ctx, func(t *Txn) error {
		var err error
		session, err = t.GetSession(ctx, token, now)
		return err
	})
	return session, err
}

// DeleteSession is the one-shot write form of Txn.DeleteSession.
func (r *Repository) DeleteSession(ctx context.Context, token string) (bool, error) {
	var existed bool
	err := r.Update(ctx, func(t *Txn) error {
		var err error
		existed, err = t.DeleteSession(ctx, token)
		return err
	})
	return existed, err
}

// DeleteExpiredSessions is the one-shot write form of
// Txn.DeleteExpiredSessions.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	var removed int
	err := r.Update(ctx, func(t *Txn) error {
		var err error
		removed, err = t.DeleteExpiredSessions(ctx, now)
		return err
	})
	return removed, err
}
