package models

import "time"

// EntityType distinguishes individuals (PF) from businesses (PJ)
type EntityType string

const (
	EntityIndividual EntityType = "PF"
	EntityBusiness   EntityType = "PJ"
)

// KYCStatus is the identity-verification state of a user
type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCFailed   KYCStatus = "FAILED"
)

// Role grants privileges to an actor
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a user in the system
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Not serialized
	EntityType   EntityType `json:"entity_type"`
	FullName     string     `json:"full_name"`
	TradeName    string     `json:"trade_name,omitempty"`
	DocumentHash string     `json:"-"`
	BirthDate    *time.Time `json:"birth_or_foundation_date,omitempty"`
	CreditScore  int        `json:"credit_score"`
	Sector       string     `json:"sector,omitempty"`
	Region       string     `json:"region,omitempty"`
	KYCStatus    KYCStatus  `json:"kyc_status"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Actor is the authenticated identity a request runs as
type Actor struct {
	UserID    int64
	KYCStatus KYCStatus
	Role      Role
}

// IsAdmin reports whether the actor carries the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ActorFor builds the actor identity for a stored user
func ActorFor(u *User) Actor {
	return Actor{UserID: u.ID, KYCStatus: u.KYCStatus, Role: u.Role}
}
