package domain

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// Hasher is the one-way credential hashing contract AuthUser delegates to.
// Implemented by the bcrypt hasher in the service layer.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) bool
}

// AuthUser is a tenant-scoped credential entity. Mutate only through its
// methods; every setter re-validates.
type AuthUser struct {
	ID           string
	Email        string
	PasswordHash string
	IsHashed     bool
	Role         Role
	MasterID     string
}

// NewAuthUser validates and builds a credential. For any role other than
// master a valid MasterID referencing an existing tenant is mandatory; a
// master registering a new tenant gets a freshly generated MasterID when
// none is supplied. The password is staged as plaintext (IsHashed false)
// unless isHashed says it was already hashed by the store.
func NewAuthUser(email, password, rawRole, masterID string, isHashed bool) (*AuthUser, error) {
	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &ErrValidation{Field: "password", Message: "password is required"}
	}

	masterID = strings.TrimSpace(masterID)
	switch {
	case role == RoleMaster && masterID == "":
		masterID = uuid.New().String()
	case masterID == "":
		return nil, &ErrValidation{Field: "masterId", Message: "masterId is required for role " + role.String()}
	default:
		if _, err := uuid.Parse(masterID); err != nil {
			return nil, &ErrValidation{Field: "masterId", Message: "masterId is not a valid id"}
		}
	}

	return &AuthUser{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: password,
		IsHashed:     isHashed,
		Role:         role,
		MasterID:     masterID,
	}, nil
}

// HashPassword replaces the staged plaintext with its hash. Idempotent:
// an already-hashed credential is left untouched.
func (u *AuthUser) HashPassword(h Hasher) error {
	if u.IsHashed {
		return nil
	}
	hashed, err := h.Hash(u.PasswordHash)
	if err != nil {
		return err
	}
	u.PasswordHash = hashed
	u.IsHashed = true
	return nil
}

// ComparePassword checks a candidate against the stored hash. Comparing
// before HashPassword is a usecase bug and surfaces as a guard error, never
// as a silent plaintext comparison.
func (u *AuthUser) ComparePassword(h Hasher, candidate string) (bool, error) {
	if candidate == "" {
		return false, &ErrValidation{Field: "password", Message: "password is required"}
	}
	if !u.IsHashed {
		return false, &ErrInternalGuard{Op: "ComparePassword", Message: "stored password was never hashed"}
	}
	return h.Verify(candidate, u.PasswordHash), nil
}

// SetEmail re-validates and replaces the email.
func (u *AuthUser) SetEmail(email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	u.Email = email
	return nil
}

// SetPassword stages a new plaintext password. Resets IsHashed so the next
// ComparePassword fails closed until HashPassword runs again.
func (u *AuthUser) SetPassword(password string) error {
	if password == "" {
		return &ErrValidation{Field: "password", Message: "password is required"}
	}
	u.PasswordHash = password
	u.IsHashed = false
	return nil
}

// SetRole re-validates and replaces the role. Demoting a master still
// requires its MasterID, which it already has.
func (u *AuthUser) SetRole(rawRole string) error {
	role, err := ParseRole(rawRole)
	if err != nil {
		return err
	}
	u.Role = role
	return nil
}

// NormalizeEmail trims, lowercases and shape-checks an address. Every
// email entering the domain goes through here, so lookups and stored keys
// always agree on casing.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", &ErrValidation{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", &ErrValidation{Field: "email", Message: "malformed email: " + email}
	}
	return email, nil
}
