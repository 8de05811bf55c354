package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// RegistrarConfig holds configuration for the Registrar.
type RegistrarConfig struct {
	Store  driven.KVStore
	Hasher driven.SecretHasher
	Logger *slog.Logger
	Now    func() time.Time

	// TTL is the registration lifetime (default 30 days).
	TTL time.Duration
}

// Registrar implements dynamic client registration.
// Only a hash of the client secret is stored.
type Registrar struct {
	store  driven.KVStore
	hasher driven.SecretHasher
	logger *slog.Logger
	now    func() time.Time
	ttl    time.Duration
}

// NewRegistrar creates a new Registrar.
func NewRegistrar(cfg RegistrarConfig) *Registrar {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = domain.ClientTTL
	}
	return &Registrar{
		store:  cfg.Store,
		hasher: cfg.Hasher,
		logger: logger,
		now:    now,
		ttl:    ttl,
	}
}

// Register validates meta and issues a client id/secret pair.
// The plaintext secret is only ever returned here.
func (r *Registrar) Register(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	meta.ApplyDefaults()

	clientID, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	secret, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	hash, err := r.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hash client secret: %w", err)
	}

	issuedAt := r.now()
	reg := &domain.ClientRegistration{
		ClientID:         clientID,
		ClientSecretHash: hash,
		ClientMetadata:   meta,
		IssuedAt:         issuedAt,
		ExpiresAt:        issuedAt.Add(r.ttl),
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return nil, fmt.Errorf("marshal client: %w", err)
	}
	if err := r.store.Put(ctx, domain.ClientKeyPrefix+clientID, data, r.ttl); err != nil {
		return nil, fmt.Errorf("save client: %w", err)
	}

	r.logger.Info("client registered", "client_id", clientID, "client_name", meta.ClientName)

	return &domain.ClientCredentials{
		ClientID:              clientID,
		ClientSecret:          secret,
		ClientIDIssuedAt:      issuedAt.Unix(),
		ClientSecretExpiresAt: reg.ExpiresAt.Unix(),
		ClientMetadata:        meta,
	}, nil
}

// Lookup returns a registered client.
// Returns domain.ErrInvalidClient if the client is unknown or its registration expired.
func (r *Registrar) Lookup(ctx context.Context, clientID string) (*domain.ClientRegistration, error) {
	if clientID == "" {
		return nil, domain.ErrInvalidClient
	}
	data, err := r.store.Get(ctx, domain.ClientKeyPrefix+clientID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidClient
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}

	var reg domain.ClientRegistration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode client: %w", err)
	}
	return &reg, nil
}

// Authenticate checks client credentials.
// Returns domain.ErrInvalidClient on unknown client or wrong secret.
func (r *Registrar) Authenticate(ctx context.Context, clientID, secret string) (*domain.ClientRegistration, error) {
	reg, err := r.Lookup(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if secret == "" || !r.hasher.Verify(secret, reg.ClientSecretHash) {
		return nil, domain.ErrInvalidClient
	}
	return reg, nil
}
