package model

import "time"

// Role names stored in the users.role column and carried in the JWT
// "role" claim.  STAFF and ADMIN may act on any vehicle; DRIVER only
// on vehicles they own.
const (
	RoleDriver = "DRIVER"
	RoleStaff  = "STAFF"
	RoleAdmin  = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – role name (DRIVER, STAFF or ADMIN).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// IsStaffRole reports whether the role may act on behalf of any
// vehicle owner.
func IsStaffRole(role string) bool {
	return role == RoleStaff || role == RoleAdmin
}
