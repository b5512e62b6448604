package domain

// LifecycleState is the activity state of an activatable record.
type LifecycleState string

const (
	LifecycleActive   LifecycleState = "ACTIVE"
	LifecycleInactive LifecycleState = "INACTIVE"
	LifecyclePending  LifecycleState = "PENDING"
)

// Lifecycle is the state machine attached to role grants and other
// activatable records. It is a value type: every transition returns a new
// instance, the receiver is never mutated.
type Lifecycle struct {
	State    LifecycleState `json:"state"`
	Verified bool           `json:"verified"`
}

// NewLifecycle returns an active, unverified lifecycle.
func NewLifecycle() Lifecycle {
	return Lifecycle{State: LifecycleActive}
}

// LifecycleFrom reconstructs a lifecycle from a stored raw state value.
// An empty raw state defaults to ACTIVE; an unrecognized one is a
// validation error.
func LifecycleFrom(raw string, verified bool) (Lifecycle, error) {
	if raw == "" {
		return Lifecycle{State: LifecycleActive, Verified: verified}, nil
	}
	switch LifecycleState(raw) {
	case LifecycleActive, LifecycleInactive, LifecyclePending:
		return Lifecycle{State: LifecycleState(raw), Verified: verified}, nil
	}
	return Lifecycle{}, &ErrValidation{Field: "state", Message: "unrecognized lifecycle state: " + raw}
}

// Equals reports whether the lifecycle is in the given state.
func (l Lifecycle) Equals(state LifecycleState) bool {
	return l.State == state
}

// IsActive reports whether the lifecycle is in the ACTIVE state.
func (l Lifecycle) IsActive() bool {
	return l.State == LifecycleActive
}

// Deactivate transitions to INACTIVE. Reachable from any state; the
// verified flag is preserved.
func (l Lifecycle) Deactivate() Lifecycle {
	l.State = LifecycleInactive
	return l
}

// Activate transitions to ACTIVE, or to PENDING when verification is
// required and has not happened yet.
func (l Lifecycle) Activate(requireVerification bool) Lifecycle {
	if requireVerification && !l.Verified {
		l.State = LifecyclePending
	} else {
		l.State = LifecycleActive
	}
	return l
}

// MarkVerified sets the verified flag. A PENDING lifecycle completes its
// activation and becomes ACTIVE; other states are unchanged.
func (l Lifecycle) MarkVerified() Lifecycle {
	l.Verified = true
	if l.State == LifecyclePending {
		l.State = LifecycleActive
	}
	return l
}
