package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "user", want: RoleUser},
		{in: "Partner", want: RolePartner},
		{in: " ADMIN ", want: RoleAdmin},
		{in: "owner", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefreshToken_Active(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)

	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour)}).Active(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now}).Active(now), "expiry is exclusive")
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}).Active(now))
	assert.True(t, (&RefreshToken{RevokedAt: &revokedAt}).Revoked())
}
