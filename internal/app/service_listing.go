package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/lifecycle"
	"givinggrid/api/internal/store"
)

const maxCausesPerListing = 2

type ListingInput struct {
	Type          string
	Title         string
	Description   string
	Category      string
	Quantity      string
	County        string
	City          string
	Urgency       string
	Logistics     string
	ContactMethod string
	CauseIDs      []int64
}

func validateListingInput(in ListingInput, creating bool) map[string]string {
	fields := map[string]string{}
	if creating && !catalog.ValidListingType(in.Type) {
		fields["type"] = "Choose a listing type."
	}
	title := strings.TrimSpace(in.Title)
	if len(title) < 5 || len(title) > 255 {
		fields["title"] = "Title must be between 5 and 255 characters."
	}
	desc := strings.TrimSpace(in.Description)
	if len(desc) < 20 || len(desc) > 5000 {
		fields["description"] = "Description must be between 20 and 5000 characters."
	}
	if !catalog.ValidCategory(in.Category) {
		fields["category"] = "Choose a category."
	}
	if !catalog.ValidCounty(in.County) {
		fields["county"] = "Choose a county."
	}
	if len(in.CauseIDs) > maxCausesPerListing {
		fields["causes"] = "Pick at most 2 causes."
	}
	return fields
}

// CreateListing validates the input and inserts an open listing. Org
// attribution applies only when the owner belongs to a verified org and
// the type is need or volunteer; offers always post as the individual.
func (s *Service) CreateListing(ctx context.Context, user store.User, in ListingInput) (int64, error) {
	if fields := validateListingInput(in, true); len(fields) > 0 {
		return 0, validationError(fields)
	}

	urgency := catalog.Urgency(in.Urgency)
	if !catalog.ValidUrgency(in.Urgency) {
		urgency = catalog.UrgencyMedium
	}
	logistics := catalog.Logistics(in.Logistics)
	if !catalog.ValidLogistics(in.Logistics) {
		logistics = catalog.LogisticsNA
	}

	listing := store.Listing{
		OwnerID:       user.ID,
		Type:          catalog.ListingType(in.Type),
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Category:      in.Category,
		Quantity:      strings.TrimSpace(in.Quantity),
		County:        in.County,
		City:          strings.TrimSpace(in.City),
		Urgency:       urgency,
		Logistics:     logistics,
		ContactMethod: strings.TrimSpace(in.ContactMethod),
	}
	if user.OrganizationID.Valid && user.OrgVerified && listing.Type != catalog.TypeOffer {
		listing.OrgID = sql.NullInt64{Int64: user.OrganizationID.Int64, Valid: true}
	}

	return s.store.CreateListing(ctx, listing, in.CauseIDs)
}

// UpdateListing edits an owned listing. The type is immutable after
// creation.
func (s *Service) UpdateListing(ctx context.Context, user store.User, listingID int64, in ListingInput) error {
	existing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Listing not found.")
	}
	if err != nil {
		return err
	}
	if existing.OwnerID != user.ID {
		return forbidden("You can only edit your own listings.")
	}

	if fields := validateListingInput(in, false); len(fields) > 0 {
		return validationError(fields)
	}

	urgency := catalog.Urgency(in.Urgency)
	if !catalog.ValidUrgency(in.Urgency) {
		urgency = existing.Urgency
	}
	logistics := catalog.Logistics(in.Logistics)
	if !catalog.ValidLogistics(in.Logistics) {
		logistics = existing.Logistics
	}

	updated := existing
	updated.Title = strings.TrimSpace(in.Title)
	updated.Description = strings.TrimSpace(in.Description)
	updated.Category = in.Category
	updated.Quantity = strings.TrimSpace(in.Quantity)
	updated.County = in.County
	updated.City = strings.TrimSpace(in.City)
	updated.Urgency = urgency
	updated.Logistics = logistics
	updated.ContactMethod = strings.TrimSpace(in.ContactMethod)

	return s.store.UpdateListing(ctx, updated, in.CauseIDs)
}

// ChangeListingStatus drives the listing state machine. Owners and admins
// may move status; everyone else is refused.
func (s *Service) ChangeListingStatus(ctx context.Context, user store.User, listingID int64, to string) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Listing not found.")
	}
	if err != nil {
		return err
	}

	if !catalog.ValidListingStatus(to) {
		return validationError(map[string]string{"status": "Unknown status."})
	}

	capability := lifecycle.CapabilityNone
	switch {
	case listing.OwnerID == user.ID:
		capability = lifecycle.CapabilityOwner
	case user.Role == catalog.RoleAdmin:
		capability = lifecycle.CapabilityModerator
	}

	if err := lifecycle.ListingTransition(listing.Status, catalog.ListingStatus(to), capability); err != nil {
		var ite *lifecycle.InvalidTransitionError
		if errors.As(err, &ite) {
			return invalidTransition("listing", ite.From, ite.To)
		}
		return forbidden("You cannot change this listing's status.")
	}

	return s.store.UpdateListingStatus(ctx, listingID, catalog.ListingStatus(to))
}

// DeleteListing removes the listing and everything hanging off it:
// responses, their messages, and cause links. Closing is the gentler
// option; deletion is for listings the owner wants gone.
func (s *Service) DeleteListing(ctx context.Context, user store.User, listingID int64) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Listing not found.")
	}
	if err != nil {
		return err
	}
	if listing.OwnerID != user.ID {
		return forbidden("You can only delete your own listings.")
	}
	return s.store.HardDeleteListing(ctx, listingID)
}

// --- Listing detail ---

type ListingPage struct {
	Listing          store.Listing
	IsOwner          bool
	NextStatuses     []catalog.ListingStatus
	Responses        []store.Response
	ExistingResponse *store.Response
	CanRespond       bool
}

func (s *Service) ListingPage(ctx context.Context, listingID int64, viewer *store.User) (ListingPage, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return ListingPage{}, notFound("Listing not found.")
	}
	if err != nil {
		return ListingPage{}, err
	}
	if !catalog.ValidCategory(listing.Category) {
		warnUnknownEnum("listing", listing.ID, "category", listing.Category)
	}
	if !catalog.ValidUrgency(string(listing.Urgency)) {
		warnUnknownEnum("listing", listing.ID, "urgency", string(listing.Urgency))
	}

	page := ListingPage{Listing: listing}
	if viewer == nil {
		return page, nil
	}

	if listing.OwnerID == viewer.ID {
		page.IsOwner = true
		page.NextStatuses = lifecycle.ListingNext(listing.Status)
		responses, err := s.store.ListResponsesForListing(ctx, listingID)
		if err != nil {
			return ListingPage{}, err
		}
		page.Responses = responses
		return page, nil
	}

	existing, err := s.store.GetResponseForListingAndUser(ctx, listingID, viewer.ID)
	switch {
	case err == nil:
		page.ExistingResponse = &existing
	case errors.Is(err, store.ErrNotFound):
		page.CanRespond = listing.Status == catalog.ListingOpen
	default:
		return ListingPage{}, err
	}
	return page, nil
}

// --- Organizations ---

type OrgInput struct {
	Name         string
	Mission      string
	Website      string
	ContactEmail string
	CountyServed string
}

// RegisterOrganization creates an unverified org and attaches the creator
// as its first member. A user already in an org cannot register another.
func (s *Service) RegisterOrganization(ctx context.Context, user store.User, in OrgInput) (int64, error) {
	if user.OrganizationID.Valid {
		return 0, conflict("You already belong to an organization.")
	}

	fields := map[string]string{}
	name := strings.TrimSpace(in.Name)
	if len(name) < 2 || len(name) > 255 {
		fields["name"] = "Organization name must be between 2 and 255 characters."
	}
	if !catalog.ValidCounty(in.CountyServed) {
		fields["county_served"] = "Choose the county your organization serves."
	}
	email := strings.TrimSpace(in.ContactEmail)
	if !strings.Contains(email, "@") {
		fields["contact_email"] = "Enter a valid contact email."
	}
	if len(fields) > 0 {
		return 0, validationError(fields)
	}

	return s.store.CreateOrganization(ctx, store.Organization{
		Name:         name,
		Mission:      strings.TrimSpace(in.Mission),
		Website:      strings.TrimSpace(in.Website),
		ContactEmail: email,
		CountyServed: in.CountyServed,
	}, user.ID)
}

type OrgPage struct {
	Org      store.Organization
	Listings []store.Listing
}

// OrgPage hides unverified orgs: absent and not-yet-verified render the
// same 404.
func (s *Service) OrgPage(ctx context.Context, orgID int64) (OrgPage, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return OrgPage{}, notFound("Organization not found.")
	}
	if err != nil {
		return OrgPage{}, err
	}
	if !org.IsVerified {
		return OrgPage{}, notFound("Organization not found.")
	}

	listings, _, err := s.store.SearchListings(ctx, store.ListingFilter{OrgID: orgID, Limit: 50})
	if err != nil {
		return OrgPage{}, err
	}
	return OrgPage{Org: org, Listings: listings}, nil
}

func (s *Service) BrowseOrganizations(ctx context.Context, county, query string, limit, offset int) ([]store.Organization, int, error) {
	return s.store.ListVerifiedOrganizations(ctx, county, query, limit, offset)
}

// BrowseListings runs the public search. A cause slug that does not
// resolve to an active cause is dropped rather than matching nothing.
func (s *Service) BrowseListings(ctx context.Context, filter store.ListingFilter) ([]store.Listing, int, error) {
	if filter.CauseSlug != "" {
		if _, err := s.store.GetCauseBySlug(ctx, filter.CauseSlug); errors.Is(err, store.ErrNotFound) {
			filter.CauseSlug = ""
		} else if err != nil {
			return nil, 0, err
		}
	}
	return s.store.SearchListings(ctx, filter)
}

func (s *Service) ActiveCauses(ctx context.Context) ([]store.Cause, error) {
	return s.store.ListActiveCauses(ctx)
}
