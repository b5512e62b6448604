package service

import (
	"context"
	"fmt"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"
	"github.com/dmeireles/escolar-iam-go/internal/infra/resilience"
	"github.com/dmeireles/escolar-iam-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var authTracer = otel.Tracer("service/auth")

// invalidCredentials is the single message for both unknown email and wrong
// password, so login never leaks which one failed.
const invalidCredentials = "invalid credentials"

// RegisterRequest is the input for account registration. MasterID is
// required unless Role is master; CNPJ is required only when a master
// registration creates a new tenant.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	MasterID string `json:"masterId,omitempty"`
	CNPJ     string `json:"cnpj,omitempty"`
}

// RegisterResponse is the output of a successful registration.
type RegisterResponse struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	MasterID string `json:"masterId"`
}

// LoginRequest is the input for authentication. Role is optional; when
// present it must match the stored role of the account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	MasterID  string `json:"masterId"`
}

// AuthService orchestrates registration and login over the credential and
// tenant stores, the hasher and the token service.
type AuthService struct {
	users       port.AuthUserStore
	tenants     port.TenantStore
	tenantCache port.Cache[*domain.Tenant]
	hasher      domain.Hasher
	tokens      *TokenService
	tokenTTLSec int
	bulkhead    *resilience.Bulkhead
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewAuthService creates the auth orchestration service. maxConcurrency
// bounds in-flight bcrypt work (hashing is CPU-bound).
func NewAuthService(
	users port.AuthUserStore,
	tenants port.TenantStore,
	tenantCache port.Cache[*domain.Tenant],
	hasher domain.Hasher,
	tokens *TokenService,
	tokenTTLSec int,
	maxConcurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AuthService {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &AuthService{
		users:       users,
		tenants:     tenants,
		tenantCache: tenantCache,
		hasher:      hasher,
		tokens:      tokens,
		tokenTTLSec: tokenTTLSec,
		bulkhead:    resilience.NewBulkhead(maxConcurrency),
		metrics:     metrics,
		logger:      logger,
	}
}

// Register creates a credential and, for masters, the tenant it owns.
// Sub-accounts require an existing tenant and receive a role grant in it.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()
	span.SetAttributes(attribute.String("role", req.Role))

	user, err := domain.NewAuthUser(req.Email, req.Password, req.Role, req.MasterID, false)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetAuthUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	// Stage the tenant mutation in memory before writing anything.
	var tenant *domain.Tenant
	if user.Role == domain.RoleMaster {
		tenant, err = domain.NewTenant(user.MasterID, req.CNPJ)
		if err != nil {
			return nil, err
		}
	} else {
		tenant, err = s.tenants.GetTenant(ctx, user.MasterID)
		if err != nil {
			return nil, fmt.Errorf("get tenant: %w", err)
		}
		if tenant == nil {
			return nil, &domain.ErrValidation{Field: "masterId", Message: "tenant does not exist"}
		}
	}
	if err := tenant.AddUserRole(user.Email, user.Role.String()); err != nil {
		return nil, err
	}

	if err := s.hashBounded(ctx, user); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.CreateAuthUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	// The tenant write comes last: a credential without a grant cannot log
	// in, while a tenant without its credential would linger as junk. When
	// the write fails the credential is rolled back again.
	persistErr := s.persistTenantFor(ctx, user.Role, tenant)
	if persistErr != nil {
		if delErr := s.users.DeleteAuthUser(ctx, user.Email); delErr != nil {
			s.logger.Error("register: credential rollback failed",
				zap.String("email", user.Email),
				zap.Error(delErr),
			)
		}
		return nil, persistErr
	}
	s.invalidateTenant(tenant.ID)

	if s.metrics != nil {
		s.metrics.IncrRegistration(user.Role.String())
	}
	s.logger.Info("account registered",
		zap.String("email", user.Email),
		zap.String("role", user.Role.String()),
		zap.String("master_id", user.MasterID),
	)

	return &RegisterResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role.String(),
		MasterID: user.MasterID,
	}, nil
}

// Login authenticates a credential and issues a token. Unknown email and
// wrong password produce the exact same error.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if req.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "password is required"}
	}
	// Registration stores the lowercased address, so lookups must use the
	// same form or a mixed-case login misses the row.
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	// Credential and tenant grants are independent lookups; fetch them
	// concurrently.
	var (
		user       *domain.AuthUser
		tenantRows []domain.Tenant
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.GetAuthUserByEmail(gCtx, email)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		rows, err := s.tenants.FindTenantsByUserEmail(gCtx, email)
		if err != nil {
			return fmt.Errorf("find tenants: %w", err)
		}
		tenantRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if user == nil {
		s.failLogin("unknown_email")
		return nil, &domain.ErrUnauthenticated{Message: invalidCredentials}
	}

	ok, err := s.compareBounded(ctx, user, req.Password)
	if err != nil {
		// Guard errors are bugs, not bad credentials; log them distinctly.
		s.logger.Error("login: password comparison failed", zap.Error(err))
		return nil, err
	}
	if !ok {
		s.failLogin("bad_password")
		s.logger.Warn("login: wrong password", zap.String("email", user.Email))
		return nil, &domain.ErrUnauthenticated{Message: invalidCredentials}
	}

	// A role mismatch gets the same generic error as bad credentials.
	if req.Role != "" {
		role, err := domain.ParseRole(req.Role)
		if err != nil || role != user.Role {
			s.failLogin("role_mismatch")
			s.logger.Warn("login: role mismatch", zap.String("email", user.Email))
			return nil, &domain.ErrUnauthenticated{Message: invalidCredentials}
		}
	}

	if !hasActiveGrantIn(tenantRows, user.MasterID, user.Email) {
		s.failLogin("inactive_grant")
		s.logger.Warn("login: no active grant", zap.String("email", user.Email))
		return nil, &domain.ErrUnauthenticated{Message: "account is not active"}
	}

	identity := &domain.Identity{
		Email:    user.Email,
		Role:     user.Role,
		MasterID: user.MasterID,
	}
	token, err := s.tokens.Generate(identity)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncrLogin("success")
	}
	s.logger.Info("login succeeded",
		zap.String("email", user.Email),
		zap.String("master_id", user.MasterID),
	)

	return &LoginResponse{
		Token:     token,
		ExpiresIn: s.tokenTTLSec,
		MasterID:  user.MasterID,
	}, nil
}

func (s *AuthService) persistTenantFor(ctx context.Context, role domain.Role, tenant *domain.Tenant) error {
	if role == domain.RoleMaster {
		if err := s.tenants.CreateTenant(ctx, tenant); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
		return nil
	}
	if err := s.tenants.UpdateTenant(ctx, tenant); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return nil
}

func (s *AuthService) failLogin(reason string) {
	if s.metrics != nil {
		s.metrics.IncrLogin("failure")
	}
	_ = reason // reasons are never surfaced to callers
}

func (s *AuthService) hashBounded(ctx context.Context, user *domain.AuthUser) error {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer s.bulkhead.Release()
	return user.HashPassword(s.hasher)
}

func (s *AuthService) compareBounded(ctx context.Context, user *domain.AuthUser, candidate string) (bool, error) {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return false, err
	}
	defer s.bulkhead.Release()
	return user.ComparePassword(s.hasher, candidate)
}

func (s *AuthService) invalidateTenant(id string) {
	if s.tenantCache != nil {
		s.tenantCache.Delete(id)
	}
}

// hasActiveGrantIn checks the user's own tenant for at least one active
// grant. A master that just registered always has one.
func hasActiveGrantIn(tenants []domain.Tenant, masterID, email string) bool {
	for i := range tenants {
		if tenants[i].ID == masterID && tenants[i].HasActiveGrant(email) {
			return true
		}
	}
	return false
}
