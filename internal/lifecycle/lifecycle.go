// Package lifecycle enforces the listing and response status machines.
// Callers pass a Capability describing who is driving the transition; the
// moderation path uses CapabilityModerator instead of bypassing checks at
// the call site.
package lifecycle

import (
	"errors"
	"fmt"

	"givinggrid/api/internal/catalog"
)

type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityOwner
	CapabilityModerator
)

// ErrNotPermitted is returned when the capability does not allow driving
// the transition at all, independent of the (from, to) pair.
var ErrNotPermitted = errors.New("not permitted to change status")

// InvalidTransitionError reports a (from, to) pair outside the adjacency
// table. It is user-facing: handlers surface the message as a flash, not a
// fault.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change %s status from %q to %q", e.Entity, e.From, e.To)
}

var listingEdges = map[catalog.ListingStatus][]catalog.ListingStatus{
	catalog.ListingOpen:       {catalog.ListingInProgress, catalog.ListingFulfilled, catalog.ListingClosed},
	catalog.ListingInProgress: {catalog.ListingOpen, catalog.ListingFulfilled, catalog.ListingClosed},
	catalog.ListingFulfilled:  {catalog.ListingClosed},
	catalog.ListingClosed:     {catalog.ListingOpen},
}

var responseEdges = map[catalog.ResponseStatus][]catalog.ResponseStatus{
	catalog.ResponsePending:   {catalog.ResponseAccepted, catalog.ResponseDeclined},
	catalog.ResponseAccepted:  {catalog.ResponseCompleted, catalog.ResponseDeclined},
	catalog.ResponseDeclined:  {},
	catalog.ResponseCompleted: {},
}

// ListingTransition checks that a listing may move from -> to under cap.
// Owners and moderators share the same adjacency table.
func ListingTransition(from, to catalog.ListingStatus, cap Capability) error {
	if cap != CapabilityOwner && cap != CapabilityModerator {
		return ErrNotPermitted
	}
	for _, next := range listingEdges[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{Entity: "listing", From: string(from), To: string(to)}
}

// ListingNext returns the statuses reachable from the given one, for
// rendering the status controls.
func ListingNext(from catalog.ListingStatus) []catalog.ListingStatus {
	return listingEdges[from]
}

// ResponseTransition checks that a response may move from -> to. Only the
// owner of the target listing drives response transitions.
func ResponseTransition(from, to catalog.ResponseStatus, cap Capability) error {
	if cap != CapabilityOwner {
		return ErrNotPermitted
	}
	for _, next := range responseEdges[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{Entity: "response", From: string(from), To: string(to)}
}

// ResponseNext returns the statuses reachable from the given one.
func ResponseNext(from catalog.ResponseStatus) []catalog.ResponseStatus {
	return responseEdges[from]
}

// ResponseActive reports whether a response still accepts messages.
func ResponseActive(status catalog.ResponseStatus) bool {
	return status == catalog.ResponsePending || status == catalog.ResponseAccepted
}
