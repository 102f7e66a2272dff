package model

import "github.com/google/uuid"

// Roles known to the ticketing service.  Staff roles (ADMIN, CASHIER)
// may act on any ticket; customers only on their own.
const (
	RoleAdmin    = "ADMIN"
	RoleCashier  = "CASHIER"
	RoleCustomer = "CUSTOMER"
)

// User is the read-only identity of a registered user as the ticket
// inventory sees it.  Credentials live elsewhere.
type User struct {
	ID    uuid.UUID // users.id (CHAR(36))
	Email string    // users.email
	Role  string    // users.role
}

// IsStaff reports whether the role bypasses ticket ownership checks.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleCashier
}
