package app

import (
	"context"
	"database/sql"
	"testing"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/store"
)

func validListingInput() ListingInput {
	return ListingInput{
		Type:        "need",
		Title:       "Winter coats for two kids",
		Description: "Looking for two warm winter coats, sizes 6 and 8, before the cold sets in.",
		Category:    "clothing",
		County:      "knox",
		Urgency:     "high",
		Logistics:   "pickup",
	}
}

func TestCreateListingValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeStore{})

	in := validListingInput()
	in.Type = "wish"
	in.Title = "Hi"
	in.Description = "too short"
	in.Category = "stuff"
	in.County = "narnia"
	in.CauseIDs = []int64{1, 2, 3}

	_, err := svc.CreateListing(context.Background(), store.User{ID: 1}, in)
	de := assertKind(t, err, KindValidation)
	for _, field := range []string{"type", "title", "description", "category", "county", "causes"} {
		if de.Fields[field] == "" {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestCreateListingOrgAttribution(t *testing.T) {
	member := store.User{
		ID:             3,
		OrganizationID: sql.NullInt64{Int64: 9, Valid: true},
		OrgVerified:    true,
	}

	cases := []struct {
		name    string
		user    store.User
		typ     string
		wantOrg bool
	}{
		{"verified member posting need", member, "need", true},
		{"verified member posting volunteer", member, "volunteer", true},
		{"verified member posting offer", member, "offer", false},
		{"unverified member posting need", store.User{ID: 3, OrganizationID: sql.NullInt64{Int64: 9, Valid: true}}, "need", false},
		{"individual posting need", store.User{ID: 3}, "need", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var created store.Listing
			fs := &fakeStore{
				createListingFn: func(_ context.Context, l store.Listing, _ []int64) (int64, error) {
					created = l
					return 42, nil
				},
			}
			svc, _ := newTestService(t, fs)

			in := validListingInput()
			in.Type = tc.typ
			id, err := svc.CreateListing(context.Background(), tc.user, in)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if id != 42 {
				t.Fatalf("expected id 42, got %d", id)
			}
			if created.OrgID.Valid != tc.wantOrg {
				t.Errorf("OrgID.Valid = %v, want %v", created.OrgID.Valid, tc.wantOrg)
			}
			if tc.wantOrg && created.OrgID.Int64 != 9 {
				t.Errorf("OrgID = %d, want 9", created.OrgID.Int64)
			}
		})
	}
}

func TestCreateListingFallsBackOnBadUrgency(t *testing.T) {
	var created store.Listing
	fs := &fakeStore{
		createListingFn: func(_ context.Context, l store.Listing, _ []int64) (int64, error) {
			created = l
			return 1, nil
		},
	}
	svc, _ := newTestService(t, fs)

	in := validListingInput()
	in.Urgency = "extreme"
	in.Logistics = "teleport"
	if _, err := svc.CreateListing(context.Background(), store.User{ID: 1}, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Urgency != catalog.UrgencyMedium {
		t.Errorf("urgency = %q, want medium", created.Urgency)
	}
	if created.Logistics != catalog.LogisticsNA {
		t.Errorf("logistics = %q, want na", created.Logistics)
	}
}

func TestUpdateListingKeepsTypeAndOwnership(t *testing.T) {
	var updated store.Listing
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return store.Listing{ID: 5, OwnerID: 1, Type: catalog.TypeOffer, Status: catalog.ListingOpen}, nil
		},
		updateListingFn: func(_ context.Context, l store.Listing, _ []int64) error {
			updated = l
			return nil
		},
	}
	svc, _ := newTestService(t, fs)

	in := validListingInput()
	in.Type = "need"
	if err := svc.UpdateListing(context.Background(), store.User{ID: 1}, 5, in); err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != catalog.TypeOffer {
		t.Errorf("type changed to %q, want offer preserved", updated.Type)
	}

	err := svc.UpdateListing(context.Background(), store.User{ID: 2}, 5, validListingInput())
	assertKind(t, err, KindForbidden)
}

func TestChangeListingStatus(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return store.Listing{ID: 5, OwnerID: 1, Status: catalog.ListingFulfilled}, nil
		},
	}
	svc, _ := newTestService(t, fs)
	ctx := context.Background()
	owner := store.User{ID: 1}

	err := svc.ChangeListingStatus(ctx, owner, 5, "open")
	de := assertKind(t, err, KindInvalidTransition)
	if de.From != "fulfilled" || de.To != "open" {
		t.Errorf("transition %s -> %s, want fulfilled -> open", de.From, de.To)
	}

	err = svc.ChangeListingStatus(ctx, store.User{ID: 2}, 5, "closed")
	assertKind(t, err, KindForbidden)

	err = svc.ChangeListingStatus(ctx, owner, 5, "archived")
	assertKind(t, err, KindValidation)
}

func TestChangeListingStatusAdminCanClose(t *testing.T) {
	var gotStatus catalog.ListingStatus
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return store.Listing{ID: 5, OwnerID: 1, Status: catalog.ListingOpen}, nil
		},
		updateListingStatusFn: func(_ context.Context, _ int64, status catalog.ListingStatus) error {
			gotStatus = status
			return nil
		},
	}
	svc, _ := newTestService(t, fs)

	admin := store.User{ID: 99, Role: catalog.RoleAdmin}
	if err := svc.ChangeListingStatus(context.Background(), admin, 5, "closed"); err != nil {
		t.Fatalf("admin close: %v", err)
	}
	if gotStatus != catalog.ListingClosed {
		t.Errorf("status = %q, want closed", gotStatus)
	}
}

func TestDeleteListing(t *testing.T) {
	deleted := false
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return store.Listing{ID: 5, OwnerID: 1, Status: catalog.ListingOpen}, nil
		},
		hardDeleteListingFn: func(context.Context, int64) error {
			deleted = true
			return nil
		},
	}
	svc, _ := newTestService(t, fs)

	err := svc.DeleteListing(context.Background(), store.User{ID: 2}, 5)
	assertKind(t, err, KindForbidden)
	if deleted {
		t.Fatal("non-owner delete reached the store")
	}

	if err := svc.DeleteListing(context.Background(), store.User{ID: 1}, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("owner delete never reached the store")
	}
}

func TestListingPageViewerShape(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return store.Listing{
				ID: 5, OwnerID: 1, Status: catalog.ListingOpen,
				Category: "food", Urgency: catalog.UrgencyHigh,
			}, nil
		},
		listResponsesForListingFn: func(context.Context, int64) ([]store.Response, error) {
			return []store.Response{{ID: 8}}, nil
		},
	}
	svc, _ := newTestService(t, fs)
	ctx := context.Background()

	anon, err := svc.ListingPage(ctx, 5, nil)
	if err != nil {
		t.Fatalf("anon page: %v", err)
	}
	if anon.IsOwner || anon.CanRespond || anon.Responses != nil {
		t.Errorf("anonymous viewer got privileged fields: %+v", anon)
	}

	owner, err := svc.ListingPage(ctx, 5, &store.User{ID: 1})
	if err != nil {
		t.Fatalf("owner page: %v", err)
	}
	if !owner.IsOwner || len(owner.Responses) != 1 || len(owner.NextStatuses) == 0 {
		t.Errorf("owner view missing fields: %+v", owner)
	}

	visitor, err := svc.ListingPage(ctx, 5, &store.User{ID: 2})
	if err != nil {
		t.Fatalf("visitor page: %v", err)
	}
	if !visitor.CanRespond || visitor.ExistingResponse != nil {
		t.Errorf("visitor view wrong: %+v", visitor)
	}
}

func TestRegisterOrganizationValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeStore{})
	ctx := context.Background()

	_, err := svc.RegisterOrganization(ctx, store.User{ID: 1}, OrgInput{
		Name:         "X",
		ContactEmail: "not-email",
		CountyServed: "gotham",
	})
	de := assertKind(t, err, KindValidation)
	for _, field := range []string{"name", "contact_email", "county_served"} {
		if de.Fields[field] == "" {
			t.Errorf("expected error for %s", field)
		}
	}

	inOrg := store.User{ID: 1, OrganizationID: sql.NullInt64{Int64: 4, Valid: true}}
	_, err = svc.RegisterOrganization(ctx, inOrg, OrgInput{})
	assertKind(t, err, KindConflict)
}

func TestOrgPageHidesUnverified(t *testing.T) {
	fs := &fakeStore{
		getOrganizationFn: func(context.Context, int64) (store.Organization, error) {
			return store.Organization{ID: 4, Name: "Helping Hands"}, nil
		},
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.OrgPage(context.Background(), 4)
	assertKind(t, err, KindNotFound)
}

func TestBrowseListingsDropsUnknownCauseSlug(t *testing.T) {
	var gotFilter store.ListingFilter
	fs := &fakeStore{
		searchListingsFn: func(_ context.Context, f store.ListingFilter) ([]store.Listing, int, error) {
			gotFilter = f
			return nil, 0, nil
		},
	}
	svc, _ := newTestService(t, fs)

	_, _, err := svc.BrowseListings(context.Background(), store.ListingFilter{CauseSlug: "no-such-cause"})
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if gotFilter.CauseSlug != "" {
		t.Errorf("cause slug %q survived, want dropped", gotFilter.CauseSlug)
	}
}

func TestBrowseListingsKeepsKnownCauseSlug(t *testing.T) {
	var gotFilter store.ListingFilter
	fs := &fakeStore{
		getCauseBySlugFn: func(_ context.Context, slug string) (store.Cause, error) {
			return store.Cause{ID: 2, Slug: slug}, nil
		},
		searchListingsFn: func(_ context.Context, f store.ListingFilter) ([]store.Listing, int, error) {
			gotFilter = f
			return nil, 0, nil
		},
	}
	svc, _ := newTestService(t, fs)

	if _, _, err := svc.BrowseListings(context.Background(), store.ListingFilter{CauseSlug: "flood-relief"}); err != nil {
		t.Fatalf("browse: %v", err)
	}
	if gotFilter.CauseSlug != "flood-relief" {
		t.Errorf("cause slug = %q, want flood-relief", gotFilter.CauseSlug)
	}
}
