// Package catalog holds the closed enumeration vocabulary used across the
// application: listing types, categories, urgency levels, counties, roles,
// report reasons, and the status sets. Every write path validates against
// these sets; lookups report unknown stored values instead of papering over
// them with a capitalized fallback.
package catalog

type ListingType string
type Urgency string
type ListingStatus string
type ResponseStatus string
type Logistics string
type Role string
type ReportType string
type ReportReason string
type ReportStatus string
type ResolutionAction string

const (
	TypeNeed      ListingType = "need"
	TypeOffer     ListingType = "offer"
	TypeVolunteer ListingType = "volunteer"
)

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

const (
	ListingOpen       ListingStatus = "open"
	ListingInProgress ListingStatus = "in_progress"
	ListingFulfilled  ListingStatus = "fulfilled"
	ListingClosed     ListingStatus = "closed"
)

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseDeclined  ResponseStatus = "declined"
	ResponseCompleted ResponseStatus = "completed"
)

const (
	LogisticsPickup   Logistics = "pickup"
	LogisticsDelivery Logistics = "delivery"
	LogisticsEither   Logistics = "either"
	LogisticsNA       Logistics = "na"
)

const (
	RoleIndividual Role = "individual"
	RoleOrgMember  Role = "org_member"
	RoleAdmin      Role = "admin"
)

const (
	ReportListing  ReportType = "listing"
	ReportUser     ReportType = "user"
	ReportResponse ReportType = "response"
)

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

const (
	ActionCloseListing   ResolutionAction = "close_listing"
	ActionDeactivateUser ResolutionAction = "deactivate_user"
	ActionDismiss        ResolutionAction = "dismiss"
)

var listingTypeLabels = map[ListingType]string{
	TypeNeed:      "Need",
	TypeOffer:     "Offer",
	TypeVolunteer: "Volunteer Opportunity",
}

var listingTypePlurals = map[ListingType]string{
	TypeNeed:      "Needs",
	TypeOffer:     "Offers",
	TypeVolunteer: "Volunteer Opportunities",
}

var categoryLabels = map[string]string{
	"food":           "Food & Meals",
	"clothing":       "Clothing & Apparel",
	"household":      "Household Items",
	"furniture":      "Furniture",
	"medical":        "Medical & Health",
	"hygiene":        "Hygiene & Personal Care",
	"baby":           "Baby & Children",
	"school":         "School Supplies",
	"electronics":    "Electronics",
	"transportation": "Transportation",
	"housing":        "Housing & Shelter",
	"utilities":      "Utilities & Bills",
	"services":       "Services",
	"skills":         "Skills & Expertise",
	"other":          "Other",
}

var urgencyLabels = map[Urgency]string{
	UrgencyLow:      "Low",
	UrgencyMedium:   "Medium",
	UrgencyHigh:     "High",
	UrgencyCritical: "Critical",
}

// urgencyRank orders urgency for the browse sort; lower ranks first.
var urgencyRank = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

var listingStatusLabels = map[ListingStatus]string{
	ListingOpen:       "Open",
	ListingInProgress: "In Progress",
	ListingFulfilled:  "Fulfilled",
	ListingClosed:     "Closed",
}

var responseStatusLabels = map[ResponseStatus]string{
	ResponsePending:   "Pending",
	ResponseAccepted:  "Accepted",
	ResponseDeclined:  "Declined",
	ResponseCompleted: "Completed",
}

var logisticsLabels = map[Logistics]string{
	LogisticsPickup:   "Pickup Required",
	LogisticsDelivery: "Delivery Available",
	LogisticsEither:   "Pickup or Delivery",
	LogisticsNA:       "Not Applicable",
}

// countyLabels covers the East Tennessee launch region.
var countyLabels = map[string]string{
	"anderson":  "Anderson County",
	"blount":    "Blount County",
	"campbell":  "Campbell County",
	"claiborne": "Claiborne County",
	"cocke":     "Cocke County",
	"grainger":  "Grainger County",
	"hamblen":   "Hamblen County",
	"jefferson": "Jefferson County",
	"knox":      "Knox County",
	"loudon":    "Loudon County",
	"monroe":    "Monroe County",
	"morgan":    "Morgan County",
	"roane":     "Roane County",
	"scott":     "Scott County",
	"sevier":    "Sevier County",
	"union":     "Union County",
}

var reportReasonLabels = map[ReportReason]string{
	"spam":          "Spam or misleading",
	"inappropriate": "Inappropriate content",
	"scam":          "Potential scam",
	"harassment":    "Harassment or abuse",
	"incorrect":     "Incorrect information",
	"duplicate":     "Duplicate listing",
	"other":         "Other concern",
}

func ValidListingType(v string) bool {
	_, ok := listingTypeLabels[ListingType(v)]
	return ok
}

func ValidCategory(v string) bool {
	_, ok := categoryLabels[v]
	return ok
}

func ValidUrgency(v string) bool {
	_, ok := urgencyLabels[Urgency(v)]
	return ok
}

func ValidListingStatus(v string) bool {
	_, ok := listingStatusLabels[ListingStatus(v)]
	return ok
}

func ValidResponseStatus(v string) bool {
	_, ok := responseStatusLabels[ResponseStatus(v)]
	return ok
}

func ValidLogistics(v string) bool {
	_, ok := logisticsLabels[Logistics(v)]
	return ok
}

func ValidCounty(v string) bool {
	_, ok := countyLabels[v]
	return ok
}

func ValidReportType(v string) bool {
	switch ReportType(v) {
	case ReportListing, ReportUser, ReportResponse:
		return true
	}
	return false
}

func ValidReportReason(v string) bool {
	_, ok := reportReasonLabels[ReportReason(v)]
	return ok
}

func ValidReportStatus(v string) bool {
	switch ReportStatus(v) {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// UrgencyRank returns the sort rank for an urgency value, most urgent
// first. Unknown values sort last.
func UrgencyRank(v Urgency) int {
	if rank, ok := urgencyRank[v]; ok {
		return rank
	}
	return len(urgencyRank)
}

// Label lookups return ok=false for values outside the vocabulary so the
// caller can surface a data-integrity warning rather than invent a label.

func ListingTypeLabel(v ListingType) (string, bool) {
	label, ok := listingTypeLabels[v]
	return label, ok
}

func ListingTypePlural(v ListingType) (string, bool) {
	label, ok := listingTypePlurals[v]
	return label, ok
}

func CategoryLabel(v string) (string, bool) {
	label, ok := categoryLabels[v]
	return label, ok
}

func UrgencyLabel(v Urgency) (string, bool) {
	label, ok := urgencyLabels[v]
	return label, ok
}

func ListingStatusLabel(v ListingStatus) (string, bool) {
	label, ok := listingStatusLabels[v]
	return label, ok
}

func ResponseStatusLabel(v ResponseStatus) (string, bool) {
	label, ok := responseStatusLabels[v]
	return label, ok
}

func LogisticsLabel(v Logistics) (string, bool) {
	label, ok := logisticsLabels[v]
	return label, ok
}

func CountyLabel(v string) (string, bool) {
	label, ok := countyLabels[v]
	return label, ok
}

func ReportReasonLabel(v ReportReason) (string, bool) {
	label, ok := reportReasonLabels[v]
	return label, ok
}

// ListingTypes returns the listing types in display order.
func ListingTypes() []ListingType {
	return []ListingType{TypeNeed, TypeOffer, TypeVolunteer}
}

// Categories returns the category keys in display order.
func Categories() []string {
	return []string{
		"food", "clothing", "household", "furniture", "medical", "hygiene",
		"baby", "school", "electronics", "transportation", "housing",
		"utilities", "services", "skills", "other",
	}
}

// Counties returns the county keys in alphabetical order.
func Counties() []string {
	return []string{
		"anderson", "blount", "campbell", "claiborne", "cocke", "grainger",
		"hamblen", "jefferson", "knox", "loudon", "monroe", "morgan",
		"roane", "scott", "sevier", "union",
	}
}

// Urgencies returns the urgency keys from least to most urgent.
func Urgencies() []string {
	return []string{"low", "medium", "high", "critical"}
}

// ReportStatuses returns the report status keys in workflow order.
func ReportStatuses() []string {
	return []string{"pending", "reviewed", "resolved", "dismissed"}
}

// ReportReasons returns the reason keys in display order.
func ReportReasons() []ReportReason {
	return []ReportReason{
		"spam", "inappropriate", "scam", "harassment", "incorrect",
		"duplicate", "other",
	}
}
