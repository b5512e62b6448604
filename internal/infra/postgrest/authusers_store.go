package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dmeireles/escolar-iam-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// authUserRow mirrors the auth_users table.
type authUserRow struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	IsHashed     bool   `json:"is_hashed"`
	Role         string `json:"role"`
	MasterID     string `json:"master_id"`
}

func authUserFromRow(r authUserRow) (*domain.AuthUser, error) {
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return nil, fmt.Errorf("auth_users row %s: %w", r.ID, err)
	}
	return &domain.AuthUser{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsHashed:     r.IsHashed,
		Role:         role,
		MasterID:     r.MasterID,
	}, nil
}

func authUserToRow(u *domain.AuthUser) authUserRow {
	return authUserRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsHashed:     u.IsHashed,
		Role:         u.Role.String(),
		MasterID:     u.MasterID,
	}
}

// AuthUserStore implements port.AuthUserStore on top of PostgREST.
type AuthUserStore struct {
	client *Client
	logger *zap.Logger
}

// NewAuthUserStore creates an auth user store.
func NewAuthUserStore(client *Client, logger *zap.Logger) *AuthUserStore {
	return &AuthUserStore{client: client, logger: logger}
}

// GetAuthUserByEmail returns the credential record for an email, or nil
// when no account exists.
func (s *AuthUserStore) GetAuthUserByEmail(ctx context.Context, email string) (*domain.AuthUser, error) {
	ctx, span := tracer.Start(ctx, "AuthUserStore.GetAuthUserByEmail")
	defer span.End()

	path := fmt.Sprintf("auth_users?email=eq.%s&limit=1", url.QueryEscape(email))

	var body []byte
	err := s.client.execute(ctx, func() error {
		var err error
		body, err = s.client.doGet(ctx, path)
		return err
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []authUserRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	user, err := authUserFromRow(rows[0])
	if err != nil {
		s.logger.Error("postgrest: corrupt auth_users row", zap.String("email", email), zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	span.SetAttributes(attribute.String("auth.user_id", user.ID))
	return user, nil
}

// CreateAuthUser inserts a new credential record.
func (s *AuthUserStore) CreateAuthUser(ctx context.Context, user *domain.AuthUser) error {
	ctx, span := tracer.Start(ctx, "AuthUserStore.CreateAuthUser")
	defer span.End()

	row := authUserToRow(user)
	err := s.client.execute(ctx, func() error {
		return s.client.doPost(ctx, "auth_users", row)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// UpdateAuthUser rewrites the credential record identified by user.ID.
func (s *AuthUserStore) UpdateAuthUser(ctx context.Context, user *domain.AuthUser) error {
	ctx, span := tracer.Start(ctx, "AuthUserStore.UpdateAuthUser")
	defer span.End()

	path := fmt.Sprintf("auth_users?id=eq.%s", url.QueryEscape(user.ID))
	data := map[string]any{
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"is_hashed":     user.IsHashed,
		"role":          user.Role.String(),
		"master_id":     user.MasterID,
	}

	err := s.client.execute(ctx, func() error {
		return s.client.doPatch(ctx, path, data)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// DeleteAuthUser removes the credential record for an email.
func (s *AuthUserStore) DeleteAuthUser(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "AuthUserStore.DeleteAuthUser")
	defer span.End()

	path := fmt.Sprintf("auth_users?email=eq.%s", url.QueryEscape(email))
	err := s.client.execute(ctx, func() error {
		return s.client.doDelete(ctx, path)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}
