package domain

import "strings"

// Role is the closed set of roles a credential can hold within a tenant.
type Role string

const (
	RoleMaster        Role = "master"
	RoleAdministrator Role = "administrator"
	RoleTeacher       Role = "teacher"
	RoleStudent       Role = "student"
	RoleWorker        Role = "worker"
)

// roleRank orders roles by authority for minimum-role checks.
// Teacher, student and worker share the lowest tier: none of them may act
// on records other than their own.
var roleRank = map[Role]int{
	RoleMaster:        3,
	RoleAdministrator: 2,
	RoleTeacher:       1,
	RoleStudent:       1,
	RoleWorker:        1,
}

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	switch r {
	case RoleMaster, RoleAdministrator, RoleTeacher, RoleStudent, RoleWorker:
		return r, nil
	}
	return "", &ErrValidation{Field: "role", Message: "unrecognized role: " + raw}
}

// AtLeast reports whether r carries at least the authority of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

func (r Role) String() string { return string(r) }
