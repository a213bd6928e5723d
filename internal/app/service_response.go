package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/lifecycle"
	"givinggrid/api/internal/store"
)

// Respond creates a pending response with its first message. A user may
// not respond to their own listing, to a non-open listing, or twice to
// the same listing.
func (s *Service) Respond(ctx context.Context, user store.User, listingID int64, message string) (int64, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, notFound("Listing not found.")
	}
	if err != nil {
		return 0, err
	}

	if listing.OwnerID == user.ID {
		return 0, forbidden("You cannot respond to your own listing.")
	}
	if listing.Status != catalog.ListingOpen {
		return 0, conflict("This listing is no longer accepting responses.")
	}

	body := strings.TrimSpace(message)
	if len(body) < 10 || len(body) > 2000 {
		return 0, validationError(map[string]string{"message": "Your message must be between 10 and 2000 characters."})
	}

	if _, err := s.store.GetResponseForListingAndUser(ctx, listingID, user.ID); err == nil {
		return 0, conflict("You have already responded to this listing.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	id, err := s.store.CreateResponseWithMessage(ctx, listingID, user.ID, body)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the race against our own earlier submit.
		return 0, conflict("You have already responded to this listing.")
	}
	if err != nil {
		return 0, err
	}

	s.notifyNewResponse(ctx, listing, user)
	return id, nil
}

func (s *Service) notifyNewResponse(ctx context.Context, listing store.Listing, responder store.User) {
	if !s.mail.IsConfigured() {
		return
	}
	owner, err := s.store.GetUserByID(ctx, listing.OwnerID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"response notification skipped","error":%q}`, err.Error())
		return
	}
	if err := s.mail.SendNewResponse(owner.Email, owner.DisplayName, responder.DisplayName, listing.Title, listing.ID); err != nil {
		log.Printf(`{"level":"warn","msg":"response notification failed","error":%q}`, err.Error())
	}
}

// --- Threads ---

type ThreadPage struct {
	Response     store.Response
	Messages     []store.Message
	IsOwner      bool
	CanMessage   bool
	NextStatuses []catalog.ResponseStatus
	Counterpart  string
}

// Thread loads a conversation for one of its two participants and marks
// the other side's messages read.
func (s *Service) Thread(ctx context.Context, user store.User, responseID int64) (ThreadPage, error) {
	resp, err := s.store.GetResponse(ctx, responseID)
	if errors.Is(err, store.ErrNotFound) {
		return ThreadPage{}, notFound("Conversation not found.")
	}
	if err != nil {
		return ThreadPage{}, err
	}

	isOwner := resp.ListingOwnerID == user.ID
	if !isOwner && resp.ResponderID != user.ID {
		return ThreadPage{}, forbidden("This conversation is private.")
	}

	if err := s.store.MarkThreadRead(ctx, responseID, user.ID); err != nil {
		return ThreadPage{}, err
	}

	messages, err := s.store.ListMessages(ctx, responseID)
	if err != nil {
		return ThreadPage{}, err
	}

	page := ThreadPage{
		Response:   resp,
		Messages:   messages,
		IsOwner:    isOwner,
		CanMessage: lifecycle.ResponseActive(resp.Status),
	}
	if isOwner {
		page.Counterpart = resp.ResponderName
		page.NextStatuses = lifecycle.ResponseNext(resp.Status)
	} else {
		page.Counterpart = resp.OwnerName
	}
	return page, nil
}

func (s *Service) Threads(ctx context.Context, userID int64) ([]store.Response, error) {
	return s.store.ListResponsesForUser(ctx, userID)
}

// SendMessage appends to an active thread.
func (s *Service) SendMessage(ctx context.Context, user store.User, responseID int64, body string) error {
	resp, err := s.store.GetResponse(ctx, responseID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Conversation not found.")
	}
	if err != nil {
		return err
	}
	if resp.ListingOwnerID != user.ID && resp.ResponderID != user.ID {
		return forbidden("This conversation is private.")
	}
	if !lifecycle.ResponseActive(resp.Status) {
		return conflict("This conversation is closed.")
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" || len(trimmed) > 2000 {
		return validationError(map[string]string{"body": "Replies must be between 1 and 2000 characters."})
	}

	_, err = s.store.AddMessage(ctx, responseID, user.ID, trimmed)
	return err
}

// ChangeResponseStatus lets the listing owner accept, decline, or
// complete a response, then notifies the responder.
func (s *Service) ChangeResponseStatus(ctx context.Context, user store.User, responseID int64, to string) error {
	resp, err := s.store.GetResponse(ctx, responseID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Conversation not found.")
	}
	if err != nil {
		return err
	}

	if !catalog.ValidResponseStatus(to) {
		return validationError(map[string]string{"status": "Unknown status."})
	}

	capability := lifecycle.CapabilityNone
	if resp.ListingOwnerID == user.ID {
		capability = lifecycle.CapabilityOwner
	}
	if err := lifecycle.ResponseTransition(resp.Status, catalog.ResponseStatus(to), capability); err != nil {
		var ite *lifecycle.InvalidTransitionError
		if errors.As(err, &ite) {
			return invalidTransition("response", ite.From, ite.To)
		}
		return forbidden("Only the listing owner can change a response's status.")
	}

	if err := s.store.UpdateResponseStatus(ctx, responseID, catalog.ResponseStatus(to)); err != nil {
		return err
	}

	s.notifyResponseStatus(ctx, resp, to)
	return nil
}

func (s *Service) notifyResponseStatus(ctx context.Context, resp store.Response, status string) {
	if !s.mail.IsConfigured() {
		return
	}
	responder, err := s.store.GetUserByID(ctx, resp.ResponderID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"status notification skipped","error":%q}`, err.Error())
		return
	}
	if err := s.mail.SendResponseStatus(responder.Email, responder.DisplayName, resp.ListingTitle, status, resp.ID); err != nil {
		log.Printf(`{"level":"warn","msg":"status notification failed","error":%q}`, err.Error())
	}
}
