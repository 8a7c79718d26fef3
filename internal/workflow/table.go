package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/store"
)

const keyPrefix = "dispatch:session:"

// Table stores at most one session per participant with a TTL.
type Table struct {
	kv  store.KV
	ttl time.Duration
}

func NewTable(kv store.KV, ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Table{kv: kv, ttl: ttl}
}

func sessionKey(participantID int64) string {
	return keyPrefix + strconv.FormatInt(participantID, 10)
}

// Load returns the participant's session or domain.ErrNoSession.
func (t *Table) Load(ctx context.Context, participantID int64) (*Session, error) {
	raw, err := t.kv.Get(ctx, sessionKey(participantID))
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, domain.ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// unreadable state is treated as expired
		_ = t.kv.Del(ctx, sessionKey(participantID))
		return nil, domain.ErrNoSession
	}
	return &s, nil
}

// Resolve loads the session a handle points at. A handle of a replaced or
// expired session returns domain.ErrNoSession.
func (t *Table) Resolve(ctx context.Context, h Handle) (*Session, error) {
	s, err := t.Load(ctx, h.ParticipantID)
	if err != nil {
		return nil, err
	}
	if s.ID != h.SessionID {
		return nil, fmt.Errorf("%w: session %s superseded", domain.ErrNoSession, h.SessionID)
	}
	return s, nil
}

// Save writes the session and refreshes its TTL.
func (t *Table) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := t.kv.Set(ctx, sessionKey(s.ParticipantID), string(raw), t.ttl); err != nil {
		return fmt.Errorf("save session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete drops the participant's session.
func (t *Table) Delete(ctx context.Context, participantID int64) error {
	if err := t.kv.Del(ctx, sessionKey(participantID)); err != nil {
		return fmt.Errorf("delete session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
