package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/metrics"
	"github.com/dtroode/auth-server/internal/model"
)

const tokenTypeBearer = "bearer"

// Recorder receives token lifecycle events.
type Recorder interface {
	TokenIssued()
	ValidationFailed(reason string)
	BlacklistDegraded(op string)
	RefreshRotated(result string)
	Revoked(kind string)
}

// TokenConfig holds lifetimes and blacklist policy.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// BlacklistTimeout bounds each blacklist call; a timeout counts as unreachable.
	BlacklistTimeout time.Duration
	// BlacklistFailClosed rejects tokens when the blacklist cannot be consulted.
	BlacklistFailClosed bool
}

// TokenService issues, validates, rotates and revokes tokens.
//
// Revocation works on two levels: the blacklist revokes a single access
// token by id, the per-user token version invalidates every access token
// issued before the last bump.
type TokenService struct {
	codec     model.TokenCodec
	users     model.UserStore
	tokens    model.RefreshTokenStore
	blacklist model.Blacklist
	tx        model.Transactor
	cfg       TokenConfig
	metrics   Recorder
	logger    *logger.Logger
	now       func() time.Time
}

// TokenServiceOption configures TokenService.
type TokenServiceOption func(*TokenService)

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) TokenServiceOption {
	return func(s *TokenService) { s.metrics = r }
}

// WithClock sets the clock used for refresh expiry.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(
	codec model.TokenCodec,
	users model.UserStore,
	tokens model.RefreshTokenStore,
	blacklist model.Blacklist,
	tx model.Transactor,
	cfg TokenConfig,
	logger *logger.Logger,
	opts ...TokenServiceOption,
) *TokenService {
	s := &TokenService{
		codec:     codec,
		users:     users,
		tokens:    tokens,
		blacklist: blacklist,
		tx:        tx,
		cfg:       cfg,
		metrics:   metrics.Noop{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints an access token at tokenVersion and persists a new refresh token.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, tokenVersion int) (model.TokenPair, error) {
	access, claims, err := s.codec.IssueAccessToken(userID, tokenVersion, s.cfg.AccessTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	secret, err := s.codec.NewRefreshSecret()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := s.now().UTC()
	record := model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: s.codec.HashRefreshSecret(secret),
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return model.TokenPair{}, fmt.Errorf("persist refresh: %w", err)
	}

	s.metrics.TokenIssued()
	s.logger.Debug("Token service: issued token pair",
		"user_id", userID,
		"jti", claims.TokenID,
		"token_version", tokenVersion)

	return model.TokenPair{
		AccessToken:      access,
		RefreshToken:     secret,
		TokenType:        tokenTypeBearer,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// Validate checks signature, expiry, blacklist, account state and token
// version. Every returned error must be reported to the caller as unauthorized.
func (s *TokenService) Validate(ctx context.Context, accessToken string) (model.Principal, error) {
	principal, err := s.validate(ctx, accessToken)
	if err != nil {
		s.metrics.ValidationFailed(model.Reason(err))
		s.logger.Debug("Token service: access token rejected",
			"reason", model.Reason(err),
			"error", err.Error())
		return model.Principal{}, err
	}
	return principal, nil
}

func (s *TokenService) validate(ctx context.Context, accessToken string) (model.Principal, error) {
	if accessToken == "" {
		return model.Principal{}, model.ErrMissingToken
	}

	claims, err := s.codec.DecodeAccessToken(accessToken)
	if err != nil {
		return model.Principal{}, err
	}

	revoked, err := s.isBlacklisted(ctx, claims.TokenID)
	if err != nil {
		return model.Principal{}, err
	}
	if revoked {
		return model.Principal{}, fmt.Errorf("%w: jti %s", model.ErrTokenRevoked, claims.TokenID)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Principal{}, fmt.Errorf("%w: unknown subject", model.ErrTokenRevoked)
		}
		return model.Principal{}, fmt.Errorf("%w: load user: %w", model.ErrStoreUnavailable, err)
	}
	if !user.IsActive {
		return model.Principal{}, model.ErrAccountInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return model.Principal{}, fmt.Errorf("%w: token %d, current %d", model.ErrTokenVersionStale, claims.TokenVersion, user.TokenVersion)
	}

	return model.Principal{
		UserID:       claims.UserID,
		TokenVersion: claims.TokenVersion,
		TokenID:      claims.TokenID,
		ExpiresAt:    claims.ExpiresAt,
	}, nil
}

// isBlacklisted consults the blacklist. When the backend is unreachable the
// token is treated as not revoked unless the service is configured to fail closed.
func (s *TokenService) isBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := s.blacklistContext(ctx)
	defer cancel()

	revoked, err := s.blacklist.IsRevoked(ctx, tokenID)
	if err == nil {
		return revoked, nil
	}

	s.metrics.BlacklistDegraded("check")
	if s.cfg.BlacklistFailClosed {
		s.logger.Error("Token service: blacklist unavailable, rejecting token",
			"jti", tokenID,
			"error", err.Error())
		return false, fmt.Errorf("%w: blacklist: %w", model.ErrStoreUnavailable, err)
	}

	s.logger.Warn("Token service: blacklist unavailable, accepting token on version check only",
		"jti", tokenID,
		"error", err.Error())
	return false, nil
}

func (s *TokenService) blacklistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.BlacklistTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.BlacklistTimeout)
}

// Rotate exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction, so it can be used at most once.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, model.ErrRefreshTokenNotFound
	}
	hash := s.codec.HashRefreshSecret(refreshToken)

	var pair model.TokenPair
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.tokens.FindByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrRefreshTokenNotFound
			}
			return err
		}
		if record.Revoked {
			s.logger.Warn("Token service: revoked refresh token presented",
				"user_id", record.UserID,
				"refresh_id", record.ID)
			return model.ErrRefreshTokenReused
		}
		if !record.Valid(s.now()) {
			return fmt.Errorf("%w: expired", model.ErrRefreshTokenNotFound)
		}

		// The shared lock orders this rotation against a concurrent version bump.
		user, err := s.users.GetByIDForShare(ctx, record.UserID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrRefreshTokenNotFound
			}
			return err
		}
		if !user.IsActive {
			return model.ErrAccountInactive
		}

		if err := s.tokens.Revoke(ctx, record.ID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrRefreshTokenReused
			}
			return err
		}

		pair, err = s.Issue(ctx, user.ID, user.TokenVersion)
		return err
	})
	if err != nil {
		s.metrics.RefreshRotated(rotationResult(err))
		return model.TokenPair{}, err
	}

	s.metrics.RefreshRotated("ok")
	return pair, nil
}

func rotationResult(err error) string {
	switch {
	case errors.Is(err, model.ErrRefreshTokenReused):
		return "reused"
	case errors.Is(err, model.ErrRefreshTokenNotFound):
		return "not_found"
	case errors.Is(err, model.ErrAccountInactive):
		return "inactive"
	default:
		return "error"
	}
}

// RevokeSession logs out one session. The refresh token is revoked first;
// the access token is then blacklisted on a best-effort basis. A failure
// to decode or blacklist the access token does not undo the first step.
func (s *TokenService) RevokeSession(ctx context.Context, accessToken, refreshToken string) error {
	var (
		refreshRevoked, accessRevoked bool
		refreshErr                    error
	)
	if refreshToken != "" {
		refreshRevoked, refreshErr = s.revokeRefresh(ctx, refreshToken)
	}

	if accessToken != "" {
		accessRevoked = s.blacklistAccess(ctx, accessToken)
	}

	if refreshRevoked || accessRevoked {
		s.metrics.Revoked("session")
	}
	return refreshErr
}

// revokeRefresh reports whether this call revoked the refresh record.
func (s *TokenService) revokeRefresh(ctx context.Context, refreshToken string) (bool, error) {
	record, err := s.tokens.FindValid(ctx, s.codec.HashRefreshSecret(refreshToken), s.now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Debug("Token service: logout with unknown or inactive refresh token")
			return false, nil
		}
		return false, fmt.Errorf("find refresh: %w", err)
	}

	if err := s.tokens.Revoke(ctx, record.ID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Revoked concurrently by a rotation or another logout.
			return false, nil
		}
		return false, fmt.Errorf("revoke refresh: %w", err)
	}
	s.logger.Info("Token service: refresh token revoked",
		"user_id", record.UserID,
		"refresh_id", record.ID)
	return true, nil
}

// blacklistAccess reports whether the access token was added to the blacklist.
func (s *TokenService) blacklistAccess(ctx context.Context, accessToken string) bool {
	claims, err := s.codec.DecodeAccessToken(accessToken)
	if err != nil {
		// Expired or invalid tokens are already unusable.
		s.logger.Debug("Token service: access token not blacklisted",
			"reason", model.Reason(err))
		return false
	}

	ctx, cancel := s.blacklistContext(ctx)
	defer cancel()

	if err := s.blacklist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		s.metrics.BlacklistDegraded("revoke")
		s.logger.Warn("Token service: failed to blacklist access token",
			"user_id", claims.UserID,
			"jti", claims.TokenID,
			"error", err.Error())
		return false
	}
	s.logger.Info("Token service: access token blacklisted",
		"user_id", claims.UserID,
		"jti", claims.TokenID)
	return true
}

// RevokeAll invalidates every session of userID: the token version is bumped
// and all refresh tokens are revoked in one transaction.
func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	var (
		version int
		revoked int64
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if version, err = s.users.IncrementTokenVersion(ctx, userID); err != nil {
			return fmt.Errorf("bump token version: %w", err)
		}
		if revoked, err = s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Revoked("all")
	s.logger.Info("Token service: all sessions revoked",
		"user_id", userID,
		"token_version", version,
		"refresh_revoked", revoked)
	return nil
}
