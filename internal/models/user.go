package models

import "time"

// Roles that receive helpdesk notifications for their department.
const (
	RoleManager        = "MANAGER"
	RoleSeniorManager  = "SENIOR_MANAGER"
	RoleGeneralManager = "GENERAL_MANAGER"
	RoleAdmin          = "ADMIN"
	RoleUser           = "USER"
)

// TeamNotificationRoles lists the roles notified about inbound tickets.
var TeamNotificationRoles = []string{RoleManager, RoleSeniorManager, RoleGeneralManager, RoleAdmin}

// User is a staff account. Department holds the team code (IS, CS, ...).
type User struct {
	ID         int64     `json:"id" db:"id"`
	Username   string    `json:"username" db:"username"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	Department string    `json:"department" db:"department"`
	Role       string    `json:"role" db:"role"`
	IsActive   bool      `json:"isActive" db:"is_active"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
