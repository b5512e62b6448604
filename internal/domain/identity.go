package domain

// Identity is the verified caller identity extracted from a token and
// evaluated by the policy engine. Not persisted.
type Identity struct {
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	MasterID string `json:"masterId"`
}
