package models

import "gorm.io/gorm"

const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	FullName     string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:student"` // student, staff, admin
}

// IsStaffRole reports whether the role may run staff overrides.
func IsStaffRole(role string) bool {
	return role == RoleStaff || role == RoleAdmin
}
