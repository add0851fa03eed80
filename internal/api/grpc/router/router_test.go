package router

import (
	"context"
	"testing"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authv1 "github.com/dtroode/auth-server/api/auth/v1"
	"github.com/dtroode/auth-server/internal/mocks"
	"github.com/dtroode/auth-server/internal/testutil"
)

func TestRouter_Register(t *testing.T) {
	t.Parallel()

	r := New(nil, nil, mocks.NewContextManager(t), prometheus.NewRegistry(), testutil.MakeNoopLogger())
	s := r.Register()
	require.NotNil(t, s)

	info := s.GetServiceInfo()
	assert.Contains(t, info, authv1.Auth_ServiceDesc.ServiceName)
	assert.Contains(t, info, authv1.Users_ServiceDesc.ServiceName)
	assert.Contains(t, info, "grpc.health.v1.Health")
	assert.NotNil(t, r.Health())
}

func TestRequiresAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		want   bool
	}{
		{authv1.Auth_Register_FullMethodName, false},
		{authv1.Auth_Login_FullMethodName, false},
		{authv1.Auth_Refresh_FullMethodName, false},
		{authv1.Auth_Logout_FullMethodName, false},
		{authv1.Auth_LogoutAll_FullMethodName, true},
		{authv1.Users_GetMe_FullMethodName, true},
		{authv1.Users_UpdateEmail_FullMethodName, true},
		{authv1.Users_ChangePassword_FullMethodName, true},
		{authv1.Users_Deactivate_FullMethodName, true},
		{"/grpc.health.v1.Health/Check", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			meta := interceptors.NewServerCallMeta(tt.method, nil, nil)
			assert.Equal(t, tt.want, requiresAuth(context.Background(), meta))
		})
	}
}

func TestRouter_RecoverPanic(t *testing.T) {
	t.Parallel()

	r := New(nil, nil, nil, nil, testutil.MakeNoopLogger())
	err := r.recoverPanic(context.Background(), "boom")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "internal server error")
}
