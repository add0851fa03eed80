package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/auth-server/internal/mocks"
	"github.com/dtroode/auth-server/internal/model"
	"github.com/dtroode/auth-server/internal/testutil"
)

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	principal := model.Principal{
		UserID:       uuid.New(),
		TokenVersion: 1,
		TokenID:      uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Minute),
	}

	tests := []struct {
		name         string
		mdAuthHeader string
		validateErr  error
		expectCall   bool
		wantErr      bool
	}{
		{
			name:    "missing authorization header",
			wantErr: true,
		},
		{
			name:         "not a bearer header",
			mdAuthHeader: "Basic dXNlcjpwYXNz",
			wantErr:      true,
		},
		{
			name:         "expired token",
			mdAuthHeader: "Bearer token",
			validateErr:  model.ErrTokenExpired,
			expectCall:   true,
			wantErr:      true,
		},
		{
			name:         "inactive account",
			mdAuthHeader: "Bearer token",
			validateErr:  model.ErrAccountInactive,
			expectCall:   true,
			wantErr:      true,
		},
		{
			name:         "store unavailable during validation",
			mdAuthHeader: "Bearer token",
			validateErr:  model.ErrStoreUnavailable,
			expectCall:   true,
			wantErr:      true,
		},
		{
			name:         "valid token",
			mdAuthHeader: "Bearer token",
			expectCall:   true,
		},
		{
			name:         "lower-case scheme",
			mdAuthHeader: "bearer token",
			expectCall:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cm := mocks.NewContextManager(t)
			validator := mocks.NewTokenValidator(t)
			if tt.expectCall {
				if tt.validateErr != nil {
					validator.On("Validate", mock.Anything, "token").Return(model.Principal{}, tt.validateErr).Once()
				} else {
					validator.On("Validate", mock.Anything, "token").Return(principal, nil).Once()
					cm.On("SetPrincipalToContext", mock.Anything, principal).Return(context.Background()).Once()
				}
			}
			m := NewAuthenticate(validator, cm, testutil.MakeNoopLogger())

			ctx := context.Background()
			if tt.mdAuthHeader != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.mdAuthHeader))
			}

			newCtx, err := m.AuthFunc(ctx)

			if tt.wantErr {
				require.Error(t, err)
				st, ok := status.FromError(err)
				require.True(t, ok)
				assert.Equal(t, codes.Unauthenticated, st.Code())
				assert.Equal(t, "unauthorized", st.Message())
				assert.Nil(t, newCtx)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, newCtx)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{name: "no metadata"},
		{name: "bearer", header: []string{"authorization", "Bearer abc"}, want: "abc"},
		{name: "mixed case with spaces", header: []string{"authorization", "  BEARER  abc "}, want: "abc"},
		{name: "scheme only", header: []string{"authorization", "Bearer"}},
		{name: "other scheme", header: []string{"authorization", "Token abc"}},
		{name: "unrelated header", header: []string{"x-token", "Bearer abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.header != nil {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(tt.header...))
			}
			assert.Equal(t, tt.want, BearerToken(ctx))
		})
	}
}
