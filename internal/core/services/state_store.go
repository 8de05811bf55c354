package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// StateStore persists the client's authorization request for the duration of
// the upstream leg. Records are single use.
type StateStore struct {
	store driven.KVStore
	ttl   time.Duration
	now   func() time.Time
}

// NewStateStore creates a StateStore backed by store
func NewStateStore(store driven.KVStore) *StateStore {
	return &StateStore{
		store: store,
		ttl:   domain.StateTTL,
		now:   time.Now,
	}
}

// CreateState stores req under a freshly minted state token and returns the token.
// The client's own state travels inside req and is handed back at callback.
// upstreamVerifier is the broker's PKCE verifier for the upstream exchange, if any.
func (s *StateStore) CreateState(ctx context.Context, req domain.AuthRequest, upstreamVerifier string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	state, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(&domain.StateRecord{
		Request:          req,
		UpstreamVerifier: upstreamVerifier,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	if err := s.store.Put(ctx, domain.StateKeyPrefix+state, data, s.ttl); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return state, nil
}

// ConsumeState atomically reads and deletes the record for state.
// The record is gone after this call whatever the caller does next.
func (s *StateStore) ConsumeState(ctx context.Context, state string) (*domain.StateRecord, error) {
	if state == "" {
		return nil, domain.ErrInvalidOrExpiredState
	}

	data, err := s.store.GetAndDelete(ctx, domain.StateKeyPrefix+state)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidOrExpiredState
	}
	if err != nil {
		return nil, fmt.Errorf("consume state: %w", err)
	}

	var record domain.StateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt state record", domain.ErrInvalidOrExpiredState)
	}
	if err := record.Request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: incomplete state record", domain.ErrInvalidOrExpiredState)
	}
	return &record, nil
}
