// Package models defines the domain models for the engagement service:
// companies, their users, project requests, materialized projects and the
// records tying them together. The structs double as GORM models.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role attached to a user account.
type Role string

const (
	// RoleVerifiedUser is the default role for a registered user.
	RoleVerifiedUser Role = "VERIFIED_USER"
	// RoleRoot marks the principal user of a verified company.
	RoleRoot Role = "ROOT"
	// RoleAdmin marks a platform administrator.
	RoleAdmin Role = "ADMIN"
)

// RequestStatus is the lifecycle state of a ProjectRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAccepted RequestStatus = "ACCEPTED"
	RequestRejected RequestStatus = "REJECTED"
)

// Discriminator encodes which sides of a project engagement are registered
// companies. When only one side is registered, the other side's foreign key
// is aliased to the registered company's id and OtherCompanyName carries the
// free-text counterparty name.
type Discriminator int

const (
	// OnlyProviderRegistered: the provider is a registered company, the
	// client exists only as a free-text name.
	OnlyProviderRegistered Discriminator = 0
	// OnlyClientRegistered: the client is a registered company, the
	// provider exists only as a free-text name.
	OnlyClientRegistered Discriminator = 1
	// BothRegistered: both counterparties are registered companies.
	BothRegistered Discriminator = 2
)

// Company represents a registered company in the directory.
type Company struct {
	// ID is the unique identifier for the company.
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Name is the company's name, globally unique.
	Name string `gorm:"size:120;uniqueIndex"`
	// Description provides details about the company.
	Description string `gorm:"size:3000"`
	// Employees is the number of employees in the company.
	Employees int `gorm:"check:employees >= 0"`
	// FoundedYear is the year the company was founded.
	FoundedYear int
	// Verified indicates whether the company passed verification.
	Verified bool
	// Rating is the derived aggregate rating across the company's
	// reviewed projects as a provider. Maintained by the rating
	// recomputation, never written directly.
	Rating    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompanyUpdate represents the fields that can be updated for a Company.
// Pointer types are used to allow partial updates.
type CompanyUpdate struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Employees   *int
	FoundedYear *int
}

// User is a registered user account. Authentication lives with the identity
// provider; this row carries the role claim source and membership anchor.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"size:254;uniqueIndex"`
	Role      Role      `gorm:"size:20"`
	CreatedAt time.Time
}

// CompanyUser affiliates a user with a company. AddedAt orders memberships;
// the oldest member is the promotion target when the company is verified.
type CompanyUser struct {
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	AddedAt   time.Time
}

// Service is a catalog entry companies can request and provide.
type Service struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:120;uniqueIndex"`
}

// Product is an item a company offers. Deleting the company removes its
// products.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index"`
	Name      string    `gorm:"size:120"`
	Company   *Company  `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

// ProductClient records a company consuming another company's product.
// The client reference is restrict: a company with product engagements
// cannot be deleted out from under them.
type ProductClient struct {
	ProductID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientCompanyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Product         *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	ClientCompany   *Company  `gorm:"foreignKey:ClientCompanyID;constraint:OnDelete:RESTRICT"`
}

// ProjectRequest is a proposed engagement between a client company and a
// provider company. Terminal states (accepted, rejected) are final.
type ProjectRequest struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientCompanyID   uuid.UUID `gorm:"type:uuid;index"`
	ProviderCompanyID uuid.UUID `gorm:"type:uuid;index"`
	Title             string    `gorm:"size:200"`
	Description       string    `gorm:"size:3000"`
	Status            RequestStatus `gorm:"size:20"`
	CreatedAt         time.Time
	DecidedAt         *time.Time
}

// RequestService maps a requested service onto a ProjectRequest.
type RequestService struct {
	RequestID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// Project is a materialized engagement. Completion requires confirmation
// from both sides; IsCompleted and CompletionDate are derived and set
// exactly once.
type Project struct {
	ID                      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title                   string    `gorm:"size:200"`
	Description             string    `gorm:"size:3000"`
	ClientMarkedCompleted   bool
	ProviderMarkedCompleted bool
	IsCompleted             bool
	CompletionDate          *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ProjectCompany attaches a project to its two counterparties. When the
// discriminator is OnlyProviderRegistered or OnlyClientRegistered, the
// unregistered side's foreign key is aliased to the registered company to
// satisfy the non-null constraint and OtherCompanyName holds the free-text
// name. OtherCompanyName is non-nil iff the discriminator is not
// BothRegistered.
type ProjectCompany struct {
	ProjectID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientCompanyID   uuid.UUID `gorm:"type:uuid;index"`
	ProviderCompanyID uuid.UUID `gorm:"type:uuid;index"`
	IsClient          Discriminator `gorm:"column:is_client"`
	OtherCompanyName  *string       `gorm:"size:120"`
	Project           *Project      `gorm:"foreignKey:ProjectID;constraint:OnDelete:RESTRICT"`
}

// Review is a rating posted by a client-side user against a completed
// project. One review per (project, user).
type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_reviews_project_user"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_reviews_project_user"`
	Rating    int       `gorm:"check:rating >= 1 AND rating <= 5"`
	Text      string    `gorm:"size:3000"`
	CreatedAt time.Time
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// ServiceProject maps a provided service onto a materialized project.
type ServiceProject struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// RoleChange is an explicit role transition command produced by workflow
// operations (verification promotion). It is applied through the role
// directory boundary rather than mutated in place.
type RoleChange struct {
	UserID uuid.UUID
	From   Role
	To     Role
}
