package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileAudience(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  Audience
	}{
		{"patient", []string{"patient"}, AudiencePatient},
		{"receptionist", []string{"receptionist"}, AudienceStaff},
		{"mixed keeps staff", []string{"patient", "Manager"}, AudienceStaff},
		{"dentist is not front desk staff", []string{"dentist"}, AudiencePatient},
		{"unknown roles ignored", []string{"superuser"}, AudiencePatient},
		{"no roles", nil, AudiencePatient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Profile{ID: "u1", Roles: ParseRoles(tt.roles)}
			assert.Equal(t, tt.want, p.Audience())
		})
	}
}

func TestParseRoles_Dedupes(t *testing.T) {
	assert.Equal(t, []Role{RoleAdmin}, ParseRoles([]string{"admin", " ADMIN "}))
}

func TestVerifier_RoundTrip(t *testing.T) {
	p := Profile{ID: "user-7", FullName: "Lan Tran", Phone: "0900000000", Roles: []Role{RoleReceptionist}}
	raw, err := IssueToken("s3cret", p, time.Hour)
	require.NoError(t, err)

	got, err := NewVerifier("s3cret").Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.FullName, got.FullName)
	assert.True(t, got.IsStaff())
}

func TestVerifier_Rejects(t *testing.T) {
	good, err := IssueToken("s3cret", Profile{ID: "u"}, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("s3cret", Profile{ID: "u"}, -time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken("s3cret", Profile{}, time.Hour)
	require.NoError(t, err)

	v := NewVerifier("other")
	_, err = v.Verify(good)
	assert.ErrorIs(t, err, ErrInvalidToken)

	v = NewVerifier("s3cret")
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithProfile(context.Background(), Profile{ID: "u1"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
}
