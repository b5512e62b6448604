package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the IAM core.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	logins          *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	policyDecisions *prometheus.CounterVec
	tokenChecks     *prometheus.CounterVec
	hashDuration    prometheus.Histogram
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iam_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iam_registrations_total",
				Help: "Completed registrations by role.",
			},
			[]string{"role"},
		),
		policyDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iam_policy_decisions_total",
				Help: "Policy decisions by outcome and action.",
			},
			[]string{"outcome", "action"},
		),
		tokenChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iam_token_verifications_total",
				Help: "Token verifications by outcome.",
			},
			[]string{"outcome"},
		),
		hashDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "iam_password_hash_duration_seconds",
				Help:    "Duration of bcrypt hashing work.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// IncrLogin increments the login counter ("success" or "failure").
func (m *Metrics) IncrLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

// IncrRegistration increments the registration counter for a role.
func (m *Metrics) IncrRegistration(role string) {
	m.registrations.WithLabelValues(role).Inc()
}

// IncrPolicyDecision increments the policy decision counter.
func (m *Metrics) IncrPolicyDecision(outcome, action string) {
	m.policyDecisions.WithLabelValues(outcome, action).Inc()
}

// IncrTokenCheck increments the token verification counter.
func (m *Metrics) IncrTokenCheck(outcome string) {
	m.tokenChecks.WithLabelValues(outcome).Inc()
}

// RecordHashDuration records the duration of one hash operation.
func (m *Metrics) RecordHashDuration(d time.Duration) {
	m.hashDuration.Observe(d.Seconds())
}

// AuthSnapshot is the aggregate view served by GET /v1/metrics/auth.
type AuthSnapshot struct {
	LoginSuccesses int64   `json:"loginSuccesses"`
	LoginFailures  int64   `json:"loginFailures"`
	LoginFailRate  float64 `json:"loginFailRate"`
	PolicyAllows   int64   `json:"policyAllows"`
	PolicyDenials  int64   `json:"policyDenials"`
	PolicyDenyRate float64 `json:"policyDenyRate"`
	TokensAccepted int64   `json:"tokensAccepted"`
	TokensRejected int64   `json:"tokensRejected"`
}

// GetAuthSnapshot reads the counters back into an aggregate view.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetAuthSnapshot() *AuthSnapshot {
	loginOK := getCounterValue(m.logins, "success")
	loginKO := getCounterValue(m.logins, "failure")

	allows, denies := m.policyTotals()
	tokOK := getCounterValue(m.tokenChecks, "success")
	tokKO := getCounterValue(m.tokenChecks, "failure")

	snap := &AuthSnapshot{
		LoginSuccesses: int64(loginOK),
		LoginFailures:  int64(loginKO),
		PolicyAllows:   int64(allows),
		PolicyDenials:  int64(denies),
		TokensAccepted: int64(tokOK),
		TokensRejected: int64(tokKO),
	}
	if loginOK+loginKO > 0 {
		snap.LoginFailRate = loginKO / (loginOK + loginKO)
	}
	if allows+denies > 0 {
		snap.PolicyDenyRate = denies / (allows + denies)
	}
	return snap
}

// policyTotals sums the per-action policy counters by outcome.
func (m *Metrics) policyTotals() (allows, denies float64) {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		m.policyDecisions.Collect(ch)
		close(ch)
	}()
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil || pb.Counter == nil || pb.Counter.Value == nil {
			continue
		}
		outcome := ""
		for _, lp := range pb.Label {
			if lp.GetName() == "outcome" {
				outcome = lp.GetValue()
			}
		}
		switch outcome {
		case "allow":
			allows += pb.Counter.GetValue()
		case "deny", "unauthenticated":
			denies += pb.Counter.GetValue()
		}
	}
	return allows, denies
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
