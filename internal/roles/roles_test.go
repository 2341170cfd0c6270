package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencirc/libconsole/internal/models"
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		name     string
		identity *models.Identity
		want     Capabilities
	}{
		{"nil identity", nil, Capabilities{}},
		{"admin", &models.Identity{Username: "root", Role: models.RoleAdmin},
			Capabilities{CanManageBooks: true, CanManageUsers: true}},
		{"librarian", &models.Identity{Username: "alice", Role: models.RoleLibrarian},
			Capabilities{CanManageBooks: true, CanManageUsers: true}},
		{"member", &models.Identity{Username: "bob", Role: models.RoleUser},
			Capabilities{}},
		{"unknown role", &models.Identity{Username: "eve", Role: "SUPERVISOR"},
			Capabilities{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CapabilitiesFor(tt.identity))
		})
	}
}

func TestCanBorrow(t *testing.T) {
	member := &models.Identity{Username: "bob", Role: models.RoleUser}
	onShelf := models.Book{ID: 1, Title: "Dune", AvailableCopies: 1}
	allOut := models.Book{ID: 2, Title: "Hyperion", TotalCopies: 3, AvailableCopies: 0}

	assert.True(t, CanBorrow(member, onShelf))
	assert.False(t, CanBorrow(member, allOut))
	assert.False(t, CanBorrow(nil, onShelf))

	// Borrowing is not a management capability; any signed-in role may.
	admin := &models.Identity{Username: "root", Role: models.RoleAdmin}
	assert.True(t, CanBorrow(admin, onShelf))
}

func TestCanEditUserRow(t *testing.T) {
	librarian := &models.Identity{Username: "alice", Role: models.RoleLibrarian}
	member := &models.Identity{Username: "bob", Role: models.RoleUser}

	other := models.UserRecord{ID: 2, Username: "bob", Role: models.RoleUser}
	self := models.UserRecord{ID: 1, Username: "alice", Role: models.RoleLibrarian}

	assert.True(t, CanEditUserRow(librarian, other))

	// Operators never edit their own row, regardless of role.
	assert.False(t, CanEditUserRow(librarian, self))

	assert.False(t, CanEditUserRow(member, other))
	assert.False(t, CanEditUserRow(nil, other))
}
