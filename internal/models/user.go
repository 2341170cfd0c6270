package models

// UserRecord is an account row from the admin listing. Distinct from
// Identity: this is data about some user, not the operator's session.
type UserRecord struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	ActiveBorrows int    `json:"activeBorrows,omitempty"`
}
