package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/model"
)

// MinSecretLength is the shortest accepted HMAC secret in bytes.
const MinSecretLength = 32

var _ model.TokenCodec = (*JWT)(nil)

// Claims is the access token claim set: sub, ver, iat, exp, jti, typ.
type Claims struct {
	jwt.RegisteredClaims
	Version   int    `json:"ver"`
	TokenType string `json:"typ"`
}

// JWT signs and verifies HS256 access tokens and mints refresh secrets.
type JWT struct {
	secretKey []byte
	now       func() time.Time
}

// Option configures JWT.
type Option func(*JWT)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) { j.now = now }
}

// NewJWT creates a token codec. It fails if the secret is too short to be safe for HS256.
func NewJWT(secretKey string, opts ...Option) (*JWT, error) {
	if len(secretKey) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLength, len(secretKey))
	}

	j := &JWT{secretKey: []byte(secretKey), now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// IssueAccessToken signs a new access token for userID at tokenVersion.
func (j *JWT) IssueAccessToken(userID uuid.UUID, tokenVersion int, ttl time.Duration) (string, model.AccessClaims, error) {
	// NumericDate has second precision; keep the returned claims equal to what a decode yields.
	issuedAt := j.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Version:   tokenVersion,
		TokenType: model.TokenTypeAccess,
	})

	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", model.AccessClaims{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, model.AccessClaims{
		UserID:       userID,
		TokenVersion: tokenVersion,
		TokenID:      tokenID,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// DecodeAccessToken verifies the signature and expiry of tokenString.
// Errors are one of model.ErrTokenExpired, model.ErrTokenSignatureInvalid
// or model.ErrTokenMalformed.
func (j *JWT) DecodeAccessToken(tokenString string) (model.AccessClaims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
			}
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return model.AccessClaims{}, fmt.Errorf("%w: %v", model.ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return model.AccessClaims{}, fmt.Errorf("%w: %v", model.ErrTokenSignatureInvalid, err)
		default:
			return model.AccessClaims{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
		}
	}

	if claims.TokenType != model.TokenTypeAccess {
		return model.AccessClaims{}, fmt.Errorf("%w: token type mismatch: %q", model.ErrTokenMalformed, claims.TokenType)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.AccessClaims{}, fmt.Errorf("%w: invalid subject", model.ErrTokenMalformed)
	}
	if claims.ID == "" || claims.Version < model.InitialTokenVersion || claims.IssuedAt == nil {
		return model.AccessClaims{}, fmt.Errorf("%w: missing claims", model.ErrTokenMalformed)
	}

	return model.AccessClaims{
		UserID:       userID,
		TokenVersion: claims.Version,
		TokenID:      claims.ID,
		IssuedAt:     claims.IssuedAt.Time.UTC(),
		ExpiresAt:    claims.ExpiresAt.Time.UTC(),
	}, nil
}
