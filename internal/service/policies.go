// Package service — identity, token and policy services for the IAM core.
package service

import (
	"context"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var policiesTracer = otel.Tracer("service/policies")

// Action identifies an operation a caller wants to perform on a
// tenant-owned resource.
type Action string

const (
	// Tenant creation happens before a target tenant exists, so it is the
	// only action exempt from the isolation check.
	ActionRegisterTenant Action = "tenant.register"

	ActionManageUsers       Action = "users.manage"
	ActionManageGrants      Action = "grants.manage"
	ActionReadGrants        Action = "grants.read"
	ActionManageLessons     Action = "lessons.manage"
	ActionReadLessons       Action = "lessons.read"
	ActionManageSchedules   Action = "schedules.manage"
	ActionReadSchedules     Action = "schedules.read"
	ActionManageCurriculums Action = "curriculums.manage"
	ActionManageEvaluations Action = "evaluations.manage"
	ActionManageAttendance  Action = "attendance.manage"
	ActionManageEvents      Action = "events.manage"
	ActionReadOwn           Action = "own.read"
	ActionUpdateOwn         Action = "own.update"
)

// minRoleForAction is the single explicit action → minimum-role table.
// Evaluations and attendance admit teachers, who own those records.
var minRoleForAction = map[Action]domain.Role{
	ActionRegisterTenant: domain.RoleMaster,

	ActionManageUsers:       domain.RoleAdministrator,
	ActionManageGrants:      domain.RoleAdministrator,
	ActionReadGrants:        domain.RoleAdministrator,
	ActionManageLessons:     domain.RoleAdministrator,
	ActionReadLessons:       domain.RoleStudent,
	ActionManageSchedules:   domain.RoleAdministrator,
	ActionReadSchedules:     domain.RoleStudent,
	ActionManageCurriculums: domain.RoleAdministrator,
	ActionManageEvaluations: domain.RoleTeacher,
	ActionManageAttendance:  domain.RoleTeacher,
	ActionManageEvents:      domain.RoleAdministrator,
	ActionReadOwn:           domain.RoleStudent,
	ActionUpdateOwn:         domain.RoleStudent,
}

// Decision is the context evaluated per call; it is never persisted.
type Decision struct {
	Identity       *domain.Identity
	TargetMasterID string
	Action         Action
}

// PoliciesService is the allow/deny engine every domain usecase consults
// before touching its gateway.
type PoliciesService struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPoliciesService creates the policy decision engine.
func NewPoliciesService(metrics *observability.Metrics, logger *zap.Logger) *PoliciesService {
	return &PoliciesService{metrics: metrics, logger: logger}
}

// Verify decides allow (nil) or deny (error). Denials short-circuit before
// any domain-data mutation. Unknown actions deny.
func (s *PoliciesService) Verify(ctx context.Context, d Decision) error {
	_, span := policiesTracer.Start(ctx, "PoliciesService.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("policy.action", string(d.Action)))

	if d.Identity == nil || d.Identity.Email == "" || !d.Identity.Role.Valid() {
		s.record("unauthenticated", d.Action)
		return &domain.ErrUnauthenticated{Message: "caller is not authenticated"}
	}

	minRole, known := minRoleForAction[d.Action]
	if !known {
		s.logger.Warn("policy: unknown action denied",
			zap.String("action", string(d.Action)),
			zap.String("email", d.Identity.Email),
		)
		s.record("deny", d.Action)
		return &domain.ErrForbidden{Action: string(d.Action), Reason: "unknown action"}
	}

	// Tenant isolation: a caller acts only within its own tenant, whatever
	// its role. Tenant creation has no pre-existing target.
	if d.Action != ActionRegisterTenant && d.Identity.MasterID != d.TargetMasterID {
		s.logger.Warn("policy: tenant mismatch",
			zap.String("action", string(d.Action)),
			zap.String("email", d.Identity.Email),
			zap.String("caller_master_id", d.Identity.MasterID),
			zap.String("target_master_id", d.TargetMasterID),
		)
		s.record("deny", d.Action)
		return &domain.ErrForbidden{Action: string(d.Action), Reason: "resource belongs to another tenant"}
	}

	if !d.Identity.Role.AtLeast(minRole) {
		s.logger.Warn("policy: insufficient role",
			zap.String("action", string(d.Action)),
			zap.String("email", d.Identity.Email),
			zap.String("role", d.Identity.Role.String()),
			zap.String("min_role", minRole.String()),
		)
		s.record("deny", d.Action)
		return &domain.ErrForbidden{Action: string(d.Action), Reason: "role " + d.Identity.Role.String() + " is insufficient"}
	}

	s.record("allow", d.Action)
	return nil
}

func (s *PoliciesService) record(outcome string, action Action) {
	if s.metrics != nil {
		s.metrics.IncrPolicyDecision(outcome, string(action))
	}
}
