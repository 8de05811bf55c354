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
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// Ensure TokenService implements TokenIntrospector
var _ driving.TokenIntrospector = (*TokenService)(nil)

// TokenServiceConfig holds configuration for the TokenService.
type TokenServiceConfig struct {
	// Store holds codes and tokens.
	Store driven.KVStore

	// Sealer encrypts the upstream access token carried with codes and tokens.
	Sealer driven.Sealer

	Logger *slog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time

	CodeTTL         time.Duration // default 10m
	AccessTokenTTL  time.Duration // default 1h
	RefreshTokenTTL time.Duration // default 30d
}

// TokenService issues and redeems authorization codes and manages the
// broker's own access and refresh tokens.
type TokenService struct {
	store  driven.KVStore
	sealer driven.Sealer
	logger *slog.Logger
	now    func() time.Time

	codeTTL         time.Duration
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	codeTTL := cfg.CodeTTL
	if codeTTL <= 0 {
		codeTTL = domain.CodeTTL
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = domain.AccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = domain.RefreshTokenTTL
	}

	return &TokenService{
		store:           cfg.Store,
		sealer:          cfg.Sealer,
		logger:          logger,
		now:             now,
		codeTTL:         codeTTL,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

// Issue mints a single-use authorization code bound to the client, redirect URI
// and the authenticated upstream identity.
func (s *TokenService) Issue(ctx context.Context, req domain.AuthRequest, claims *domain.IDTokenClaims, upstreamAccessToken string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if claims == nil || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrMalformedToken)
	}

	code, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	sealed, err := s.sealer.Seal([]byte(upstreamAccessToken), grantBinding(req.ClientID, claims.Subject))
	if err != nil {
		return "", fmt.Errorf("seal upstream token: %w", err)
	}

	record := &domain.AuthorizationCode{
		Code:                code,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		UserID:              claims.Subject,
		Email:               claims.Email,
		Name:                claims.Name,
		UpstreamAccessToken: sealed,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		IssuedAt:            s.now(),
	}
	if err := s.put(ctx, domain.CodeKeyPrefix+code, record, s.codeTTL); err != nil {
		return "", fmt.Errorf("save authorization code: %w", err)
	}
	return code, nil
}

// Redeem exchanges an authorization code for an access/refresh token pair.
// The code is deleted on first read, whether or not the request matches it.
func (s *TokenService) Redeem(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*domain.TokenPair, error) {
	data, err := s.store.GetAndDelete(ctx, domain.CodeKeyPrefix+code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}

	var record domain.AuthorizationCode
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt authorization code", domain.ErrInvalidGrant)
	}

	if record.ClientID != clientID || record.RedirectURI != redirectURI {
		s.logger.Warn("authorization code presented by wrong client",
			"client_id", clientID,
			"code_client_id", record.ClientID,
		)
		return nil, domain.ErrInvalidGrant
	}

	if record.CodeChallenge != "" && !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
		return nil, fmt.Errorf("%w: code verifier mismatch", domain.ErrInvalidGrant)
	}

	refreshToken, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	refresh := &domain.RefreshTokenRecord{
		Token:               refreshToken,
		ClientID:            record.ClientID,
		UserID:              record.UserID,
		Scope:               record.Scope,
		Email:               record.Email,
		Name:                record.Name,
		UpstreamAccessToken: record.UpstreamAccessToken,
		ExpiresAt:           s.now().Add(s.refreshTokenTTL),
	}
	if err := s.put(ctx, domain.RefreshKeyPrefix+refreshToken, refresh, s.refreshTokenTTL); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return s.mintAccessToken(ctx, refresh)
}

// Refresh issues a new access token for an existing refresh token.
// The refresh token itself is returned unchanged.
func (s *TokenService) Refresh(ctx context.Context, refreshToken, clientID string) (*domain.TokenPair, error) {
	data, err := s.store.Get(ctx, domain.RefreshKeyPrefix+refreshToken)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	var refresh domain.RefreshTokenRecord
	if err := json.Unmarshal(data, &refresh); err != nil {
		return nil, fmt.Errorf("%w: corrupt refresh token", domain.ErrInvalidGrant)
	}
	if refresh.ClientID != clientID {
		return nil, domain.ErrInvalidGrant
	}

	return s.mintAccessToken(ctx, &refresh)
}

func (s *TokenService) mintAccessToken(ctx context.Context, refresh *domain.RefreshTokenRecord) (*domain.TokenPair, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	access := &domain.AccessTokenRecord{
		Token:               token,
		ClientID:            refresh.ClientID,
		UserID:              refresh.UserID,
		Scope:               refresh.Scope,
		Email:               refresh.Email,
		Name:                refresh.Name,
		UpstreamAccessToken: refresh.UpstreamAccessToken,
		ExpiresAt:           s.now().Add(s.accessTokenTTL),
	}
	if err := s.put(ctx, domain.TokenKeyPrefix+token, access, s.accessTokenTTL); err != nil {
		return nil, fmt.Errorf("save access token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  token,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
		RefreshToken: refresh.Token,
		Scope:        domain.JoinScope(refresh.Scope),
	}, nil
}

// Introspect resolves an access token to the identity it was issued for.
// Returns domain.ErrNotFound for unknown or expired tokens.
func (s *TokenService) Introspect(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}

	data, err := s.store.Get(ctx, domain.TokenKeyPrefix+token)
	if err != nil {
		return nil, err
	}

	var record domain.AccessTokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode access token record: %w", err)
	}
	if record.IsExpired(s.now()) {
		return nil, domain.ErrNotFound
	}

	authCtx := record.AuthContext()
	if len(record.UpstreamAccessToken) > 0 {
		upstream, err := s.sealer.Open(record.UpstreamAccessToken, grantBinding(record.ClientID, record.UserID))
		if err != nil {
			return nil, fmt.Errorf("open upstream token: %w", err)
		}
		authCtx.UpstreamAccessToken = string(upstream)
	}
	return authCtx, nil
}

// grantBinding ties a sealed upstream token to the client and user it was issued for.
func grantBinding(clientID, userID string) []byte {
	return []byte(clientID + "\x00" + userID)
}

func (s *TokenService) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return s.store.Put(ctx, key, data, ttl)
}
