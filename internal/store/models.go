package store

import (
	"database/sql"
	"time"

	"givinggrid/api/internal/catalog"
)

type User struct {
	ID             int64
	DisplayName    string
	Email          string
	PasswordHash   string
	Role           catalog.Role
	OrganizationID sql.NullInt64
	County         string
	Bio            string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Joined display fields
	OrganizationName sql.NullString
	OrgVerified      bool
}

type Organization struct {
	ID           int64
	Name         string
	Mission      string
	Website      string
	ContactEmail string
	CountyServed string
	IsVerified   bool
	VerifiedAt   sql.NullTime
	VerifiedByID sql.NullInt64
	CreatedByID  int64
	CreatedAt    time.Time

	// Joined display fields
	MemberCount   int
	OpenNeeds     int
	OpenOffers    int
	OpenVolunteer int
}

type Cause struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	IsActive    bool

	// Joined display fields
	OpenListings int
}

type Listing struct {
	ID            int64
	OwnerID       int64
	OrgID         sql.NullInt64
	Type          catalog.ListingType
	Title         string
	Description   string
	Category      string
	Quantity      string
	County        string
	City          string
	Urgency       catalog.Urgency
	Logistics     catalog.Logistics
	ContactMethod string
	Status        catalog.ListingStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FulfilledAt   sql.NullTime

	// Joined display fields
	OwnerName     string
	OrgName       sql.NullString
	OrgVerified   bool
	Causes        []Cause
	ResponseCount int
}

type Response struct {
	ID          int64
	ListingID   int64
	ResponderID int64
	Status      catalog.ResponseStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined display fields
	ResponderName  string
	ListingTitle   string
	ListingType    catalog.ListingType
	ListingStatus  catalog.ListingStatus
	ListingOwnerID int64
	OwnerName      string
	MessageCount   int
	UnreadCount    int
	LastMessageAt  sql.NullTime
}

type Message struct {
	ID         int64
	ResponseID int64
	SenderID   int64
	Body       string
	IsRead     bool
	CreatedAt  time.Time

	// Joined display fields
	SenderName string
}

type Report struct {
	ID               int64
	Type             catalog.ReportType
	TargetID         int64
	ReporterID       sql.NullInt64
	Reason           catalog.ReportReason
	Details          string
	Status           catalog.ReportStatus
	ResolutionAction sql.NullString
	ResolutionNote   string
	ResolvedByID     sql.NullInt64
	ResolvedAt       sql.NullTime
	CreatedAt        time.Time

	// Joined display fields
	ReporterName   sql.NullString
	ResolvedByName sql.NullString
	TargetSummary  string
}

// SiteStats backs the public footer counts and the admin dashboard.
type SiteStats struct {
	Users          int64
	ActiveUsers    int64
	Organizations  int64
	VerifiedOrgs   int64
	Listings       int64
	OpenListings   int64
	Fulfilled      int64
	Responses      int64
	PendingReports int64

	// Admin dashboard extras
	PendingVerifications int64
	FulfilledThisWeek    int64
	NewUsersThisWeek     int64
}

// ActivityItem is one row of the admin activity feed.
type ActivityItem struct {
	Kind      string // listing, response, report, user, org
	Summary   string
	CreatedAt time.Time
}
