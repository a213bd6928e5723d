package app

import (
	"context"
	"testing"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/store"
)

func openListing() store.Listing {
	return store.Listing{ID: 5, OwnerID: 1, Title: "Pantry shelves", Status: catalog.ListingOpen}
}

func TestRespondToOwnListing(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return openListing(), nil
		},
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.Respond(context.Background(), store.User{ID: 1}, 5, "I would like to help with this.")
	assertKind(t, err, KindForbidden)
}

func TestRespondToClosedListing(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			l := openListing()
			l.Status = catalog.ListingClosed
			return l, nil
		},
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.Respond(context.Background(), store.User{ID: 2}, 5, "I would like to help with this.")
	assertKind(t, err, KindConflict)
}

func TestRespondMessageLength(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return openListing(), nil
		},
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.Respond(context.Background(), store.User{ID: 2}, 5, "  hi  ")
	de := assertKind(t, err, KindValidation)
	if de.Fields["message"] == "" {
		t.Fatalf("expected message field error")
	}
}

func TestRespondTwice(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return openListing(), nil
		},
		getResponseForListingAndUserFn: func(context.Context, int64, int64) (store.Response, error) {
			return store.Response{ID: 8}, nil
		},
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.Respond(context.Background(), store.User{ID: 2}, 5, "I would like to help with this.")
	assertKind(t, err, KindConflict)
}

func TestRespondDuplicateRace(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return openListing(), nil
		},
		createResponseWithMessageFn: func(context.Context, int64, int64, string) (int64, error) {
			return 0, store.ErrDuplicate
		},
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.Respond(context.Background(), store.User{ID: 2}, 5, "I would like to help with this.")
	assertKind(t, err, KindConflict)
}

func TestRespondNotifiesOwner(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return openListing(), nil
		},
		createResponseWithMessageFn: func(context.Context, int64, int64, string) (int64, error) {
			return 11, nil
		},
		getUserByIDFn: func(_ context.Context, id int64) (store.User, error) {
			return store.User{ID: id, Email: "owner@example.com", DisplayName: "Owner", IsActive: true}, nil
		},
	}
	svc, mail := newTestService(t, fs)
	mail.configured = true

	id, err := svc.Respond(context.Background(), store.User{ID: 2, DisplayName: "Helper"}, 5, "I have two shelves you can pick up this week.")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if id != 11 {
		t.Fatalf("response id = %d, want 11", id)
	}
	if len(mail.newResponses) != 1 || mail.newResponses[0] != "owner@example.com" {
		t.Fatalf("notification recipients = %v, want owner", mail.newResponses)
	}
}

func TestRespondSkipsMailWhenUnconfigured(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, int64) (store.Listing, error) {
			return openListing(), nil
		},
		createResponseWithMessageFn: func(context.Context, int64, int64, string) (int64, error) {
			return 11, nil
		},
	}
	svc, mail := newTestService(t, fs)

	if _, err := svc.Respond(context.Background(), store.User{ID: 2}, 5, "I have two shelves you can pick up."); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(mail.newResponses) != 0 {
		t.Fatalf("unexpected notifications: %v", mail.newResponses)
	}
}

func TestThreadAccessAndShape(t *testing.T) {
	marked := []int64{}
	fs := &fakeStore{
		getResponseFn: func(context.Context, int64) (store.Response, error) {
			return store.Response{
				ID: 8, ListingOwnerID: 1, ResponderID: 2,
				OwnerName: "Owner", ResponderName: "Helper",
				Status: catalog.ResponsePending,
			}, nil
		},
		markThreadReadFn: func(_ context.Context, _ int64, userID int64) error {
			marked = append(marked, userID)
			return nil
		},
		listMessagesFn: func(context.Context, int64) ([]store.Message, error) {
			return []store.Message{{ID: 1}, {ID: 2}}, nil
		},
	}
	svc, _ := newTestService(t, fs)
	ctx := context.Background()

	_, err := svc.Thread(ctx, store.User{ID: 3}, 8)
	assertKind(t, err, KindForbidden)

	ownerView, err := svc.Thread(ctx, store.User{ID: 1}, 8)
	if err != nil {
		t.Fatalf("owner thread: %v", err)
	}
	if !ownerView.IsOwner || ownerView.Counterpart != "Helper" {
		t.Errorf("owner view wrong: %+v", ownerView)
	}
	if len(ownerView.NextStatuses) == 0 || !ownerView.CanMessage {
		t.Errorf("owner controls missing: %+v", ownerView)
	}

	responderView, err := svc.Thread(ctx, store.User{ID: 2}, 8)
	if err != nil {
		t.Fatalf("responder thread: %v", err)
	}
	if responderView.IsOwner || responderView.Counterpart != "Owner" {
		t.Errorf("responder view wrong: %+v", responderView)
	}
	if responderView.NextStatuses != nil {
		t.Errorf("responder got status controls: %v", responderView.NextStatuses)
	}

	if len(marked) != 2 || marked[0] != 1 || marked[1] != 2 {
		t.Errorf("mark-read calls = %v, want [1 2]", marked)
	}
}

func TestSendMessageOnClosedThread(t *testing.T) {
	fs := &fakeStore{
		getResponseFn: func(context.Context, int64) (store.Response, error) {
			return store.Response{ID: 8, ListingOwnerID: 1, ResponderID: 2, Status: catalog.ResponseDeclined}, nil
		},
	}
	svc, _ := newTestService(t, fs)

	err := svc.SendMessage(context.Background(), store.User{ID: 2}, 8, "hello again")
	assertKind(t, err, KindConflict)
}

func TestSendMessageValidation(t *testing.T) {
	added := false
	fs := &fakeStore{
		getResponseFn: func(context.Context, int64) (store.Response, error) {
			return store.Response{ID: 8, ListingOwnerID: 1, ResponderID: 2, Status: catalog.ResponseAccepted}, nil
		},
		addMessageFn: func(context.Context, int64, int64, string) (int64, error) {
			added = true
			return 3, nil
		},
	}
	svc, _ := newTestService(t, fs)
	ctx := context.Background()

	err := svc.SendMessage(ctx, store.User{ID: 1}, 8, "   ")
	de := assertKind(t, err, KindValidation)
	if de.Fields["body"] == "" {
		t.Fatalf("expected body field error")
	}
	if added {
		t.Fatal("blank message reached the store")
	}

	if err := svc.SendMessage(ctx, store.User{ID: 1}, 8, "See you Saturday."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !added {
		t.Fatal("valid message never reached the store")
	}
}

func TestChangeResponseStatus(t *testing.T) {
	fs := &fakeStore{
		getResponseFn: func(context.Context, int64) (store.Response, error) {
			return store.Response{ID: 8, ListingOwnerID: 1, ResponderID: 2, Status: catalog.ResponsePending}, nil
		},
	}
	svc, _ := newTestService(t, fs)
	ctx := context.Background()

	err := svc.ChangeResponseStatus(ctx, store.User{ID: 2}, 8, "accepted")
	assertKind(t, err, KindForbidden)

	err = svc.ChangeResponseStatus(ctx, store.User{ID: 1}, 8, "completed")
	de := assertKind(t, err, KindInvalidTransition)
	if de.From != "pending" || de.To != "completed" {
		t.Errorf("transition %s -> %s, want pending -> completed", de.From, de.To)
	}

	err = svc.ChangeResponseStatus(ctx, store.User{ID: 1}, 8, "bogus")
	assertKind(t, err, KindValidation)
}

func TestChangeResponseStatusNotifiesResponder(t *testing.T) {
	fs := &fakeStore{
		getResponseFn: func(context.Context, int64) (store.Response, error) {
			return store.Response{ID: 8, ListingOwnerID: 1, ResponderID: 2, Status: catalog.ResponsePending}, nil
		},
		getUserByIDFn: func(_ context.Context, id int64) (store.User, error) {
			return store.User{ID: id, Email: "helper@example.com", IsActive: true}, nil
		},
	}
	svc, mail := newTestService(t, fs)
	mail.configured = true

	if err := svc.ChangeResponseStatus(context.Background(), store.User{ID: 1}, 8, "accepted"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(mail.statusMails) != 1 || mail.statusMails[0] != "helper@example.com" {
		t.Fatalf("status mail recipients = %v, want helper", mail.statusMails)
	}
}
