package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleName enum
type RoleName string

const (
	RoleUser       RoleName = "USER"
	RoleDoctor     RoleName = "DOCTOR"
	RoleAdmin      RoleName = "ADMIN"
	RoleSuperAdmin RoleName = "SUPER_ADMIN"
)

// AllRoles is the fixed role set seeded by Migrate.
var AllRoles = []RoleName{RoleUser, RoleDoctor, RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the known roles.
func (r RoleName) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusInactive  AccountStatus = "INACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusPending   AccountStatus = "PENDING"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// Role is a capability tag. Names are unique.
type Role struct {
	ID   uint     `gorm:"primaryKey" json:"id"`
	Name RoleName `gorm:"uniqueIndex;size:20;not null" json:"name"`
}

// AccountRole links an account to a role.
type AccountRole struct {
	AccountID  string    `gorm:"primaryKey;size:36" json:"accountId"`
	RoleID     uint      `gorm:"primaryKey" json:"roleId"`
	AssignedAt time.Time `json:"assignedAt"`

	Role Role `gorm:"foreignKey:RoleID" json:"-"`
}

// Account represents a login identity (patient, doctor or admin)
type Account struct {
	BaseModel
	Username    string        `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email       string        `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password    string        `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName   string        `gorm:"size:100" json:"firstName"`
	LastName    string        `gorm:"size:100" json:"lastName"`
	PhoneNumber string        `gorm:"size:30" json:"phoneNumber,omitempty"`
	Status      AccountStatus `gorm:"size:20;default:'ACTIVE'" json:"status"`
	LastLoginAt *time.Time    `json:"lastLoginAt,omitempty"`

	Roles []AccountRole `gorm:"foreignKey:AccountID" json:"-"`
}

// AccountSanitized represents the account data that is safe to send in API responses.
type AccountSanitized struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	PhoneNumber string        `json:"phoneNumber,omitempty"`
	Status      AccountStatus `json:"status"`
	Roles       []RoleName    `json:"roles"`
	LastLoginAt *time.Time    `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the account
func (a *Account) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the account's hashed password
func (a *Account) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password))
	return err == nil
}

// RoleNames returns the names of the preloaded roles.
func (a *Account) RoleNames() []RoleName {
	names := make([]RoleName, 0, len(a.Roles))
	for _, ar := range a.Roles {
		names = append(names, ar.Role.Name)
	}
	return names
}

// HasRole reports whether the preloaded roles contain r.
func (a *Account) HasRole(r RoleName) bool {
	for _, name := range a.RoleNames() {
		if name == r {
			return true
		}
	}
	return false
}

// Sanitize creates an AccountSanitized from an Account, excluding sensitive data.
// Roles must be preloaded to be included.
func (a *Account) Sanitize() AccountSanitized {
	return AccountSanitized{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		PhoneNumber: a.PhoneNumber,
		Status:      a.Status,
		Roles:       a.RoleNames(),
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
