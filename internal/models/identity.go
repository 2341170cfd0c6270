package models

// Roles the catalog API assigns to accounts.
const (
	RoleAdmin     = "ADMIN"
	RoleLibrarian = "LIBRARIAN"
	RoleUser      = "USER"
)

// Identity is the authenticated operator: who logged in, not an account row.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ValidRole reports whether role is one of the roles the catalog API knows.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleLibrarian, RoleUser:
		return true
	}
	return false
}
