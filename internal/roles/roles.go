// Package roles derives what the current operator may attempt. The gate is
// advisory: the server decides for real, this only controls which
// affordances the console shows and which commands it will dispatch.
package roles

import "github.com/opencirc/libconsole/internal/models"

// Capabilities is the management capability set of an identity.
type Capabilities struct {
	CanManageBooks bool
	CanManageUsers bool
}

// CapabilitiesFor maps an identity to its capability set. ADMIN and
// LIBRARIAN carry identical management capabilities; the only distinction
// between them lives in CanEditUserRow.
func CapabilitiesFor(identity *models.Identity) Capabilities {
	if identity == nil {
		return Capabilities{}
	}
	manager := identity.Role == models.RoleAdmin || identity.Role == models.RoleLibrarian
	return Capabilities{
		CanManageBooks: manager,
		CanManageUsers: manager,
	}
}

// CanBorrow reports whether the identity may attempt to borrow the book:
// someone must be logged in and a copy must be on the shelf.
func CanBorrow(identity *models.Identity, book models.Book) bool {
	return identity != nil && book.AvailableCopies > 0
}

// CanEditUserRow reports whether the identity may edit or delete the given
// account row. Managers may touch any row except their own.
func CanEditUserRow(identity *models.Identity, row models.UserRecord) bool {
	if identity == nil {
		return false
	}
	if !CapabilitiesFor(identity).CanManageUsers {
		return false
	}
	return row.Username != identity.Username
}
