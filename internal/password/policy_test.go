package password

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtroode/auth-server/internal/model"
)

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "ok", password: "Str0ng!pass", wantErr: false},
		{name: "too short", password: "Ab!1", wantErr: true},
		{name: "all lower", password: "lowercase!1", wantErr: true},
		{name: "all upper", password: "UPPERCASE!1", wantErr: true},
		{name: "alphanumeric only", password: "MixedCase123", wantErr: true},
		{name: "unicode symbol", password: "Passwörd€x", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStrength(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrWeakPassword)
				return
			}
			assert.NoError(t, err)
		})
	}
}
