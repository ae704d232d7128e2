package session

import (
	"context"
	"strings"
)

// Role is one of the fixed roles the auth service assigns.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleReceptionist Role = "receptionist"
	RoleDentist      Role = "dentist"
	RolePatient      Role = "patient"
)

var knownRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleManager:      true,
	RoleReceptionist: true,
	RoleDentist:      true,
	RolePatient:      true,
}

var staffRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleManager:      true,
	RoleReceptionist: true,
}

// ParseRoles keeps the recognised roles and drops the rest.
func ParseRoles(raw []string) []Role {
	out := make([]Role, 0, len(raw))
	seen := make(map[Role]bool, len(raw))
	for _, r := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(r)))
		if !knownRoles[role] || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	return out
}

// Audience decides which side of the clinic a terminal screen is written for.
type Audience int

const (
	AudiencePatient Audience = iota
	AudienceStaff
)

func (a Audience) String() string {
	if a == AudienceStaff {
		return "staff"
	}
	return "patient"
}

// Profile is the authenticated user as the auth service describes them.
type Profile struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Roles       []Role `json:"roles"`
}

// Audience is resolved once from the role set: any staff role makes the
// caller staff.
func (p Profile) Audience() Audience {
	for _, r := range p.Roles {
		if staffRoles[r] {
			return AudienceStaff
		}
	}
	return AudiencePatient
}

func (p Profile) IsStaff() bool {
	return p.Audience() == AudienceStaff
}

type ctxKey struct{}

func WithProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(ctxKey{}).(Profile)
	return p, ok
}
