package app

import (
	"fmt"
	"net/http"
	"strconv"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/store"
)

type listingFormPayload struct {
	Editing    bool
	ListingID  int64
	Form       ListingInput
	Errors     map[string]string
	Categories []string
	Counties   []string
	Urgencies  []string
	Causes     []store.Cause
}

func (s *HTTPServer) listingFormPayload(causes []store.Cause, form ListingInput) listingFormPayload {
	return listingFormPayload{
		Form:       form,
		Categories: catalog.Categories(),
		Counties:   catalog.Counties(),
		Urgencies:  catalog.Urgencies(),
		Causes:     causes,
	}
}

func parseListingForm(r *http.Request) ListingInput {
	in := ListingInput{
		Type:          r.PostFormValue("type"),
		Title:         r.PostFormValue("title"),
		Description:   r.PostFormValue("description"),
		Category:      r.PostFormValue("category"),
		Quantity:      r.PostFormValue("quantity"),
		County:        r.PostFormValue("county"),
		City:          r.PostFormValue("city"),
		Urgency:       r.PostFormValue("urgency"),
		Logistics:     r.PostFormValue("logistics"),
		ContactMethod: r.PostFormValue("contact_method"),
	}
	for _, raw := range r.PostForm["causes"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			in.CauseIDs = append(in.CauseIDs, id)
		}
	}
	return in
}

func (s *HTTPServer) handlePostListing(w http.ResponseWriter, r *http.Request, sess webSession) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}

	causes, err := s.service.ActiveCauses(r.Context())
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, sess, "listing_form", "Post a listing", s.listingFormPayload(causes, ListingInput{
			Type:      string(catalog.TypeNeed),
			County:    user.County,
			Urgency:   string(catalog.UrgencyMedium),
			Logistics: string(catalog.LogisticsNA),
		}))
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	in := parseListingForm(r)
	id, err := s.service.CreateListing(r.Context(), user, in)
	if fields := validationFields(err); fields != nil {
		payload := s.listingFormPayload(causes, in)
		payload.Errors = fields
		s.renderStatus(w, r, sess, "listing_form", "Post a listing", http.StatusUnprocessableEntity, payload)
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, "/post")
		return
	}
	s.flashRedirect(w, r, sess, "success", "Your listing is live.", fmt.Sprintf("/listing/%d", id))
}

func (s *HTTPServer) routeListing(w http.ResponseWriter, r *http.Request, sess webSession, id int64, parts []string) {
	listingURL := fmt.Sprintf("/listing/%d", id)

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		page, err := s.service.ListingPage(r.Context(), id, sess.User)
		if err != nil {
			s.fail(w, r, sess, err, "/browse")
			return
		}
		s.render(w, r, sess, "listing_detail", page.Listing.Title, page)
		return
	}

	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}

	switch parts[2] {
	case "edit":
		s.handleEditListing(w, r, sess, user, id)
	case "status":
		if r.Method != http.MethodPost {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		if err := s.service.ChangeListingStatus(r.Context(), user, id, r.PostFormValue("status")); err != nil {
			s.fail(w, r, sess, err, listingURL)
			return
		}
		s.flashRedirect(w, r, sess, "success", "Listing status updated.", listingURL)
	case "delete":
		if r.Method != http.MethodPost {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		if err := s.service.DeleteListing(r.Context(), user, id); err != nil {
			s.fail(w, r, sess, err, listingURL)
			return
		}
		s.flashRedirect(w, r, sess, "success", "Your listing has been deleted.", "/dashboard")
	case "respond":
		s.handleRespond(w, r, sess, user, id)
	default:
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
	}
}

func (s *HTTPServer) handleEditListing(w http.ResponseWriter, r *http.Request, sess webSession, user store.User, id int64) {
	listingURL := fmt.Sprintf("/listing/%d", id)
	causes, err := s.service.ActiveCauses(r.Context())
	if err != nil {
		s.fail(w, r, sess, err, listingURL)
		return
	}

	if r.Method == http.MethodGet {
		page, err := s.service.ListingPage(r.Context(), id, &user)
		if err != nil {
			s.fail(w, r, sess, err, "/dashboard")
			return
		}
		if !page.IsOwner {
			s.errorPage(w, sess, http.StatusForbidden, "Only the owner can edit this listing.")
			return
		}
		l := page.Listing
		form := ListingInput{
			Type:          string(l.Type),
			Title:         l.Title,
			Description:   l.Description,
			Category:      l.Category,
			Quantity:      l.Quantity,
			County:        l.County,
			City:          l.City,
			Urgency:       string(l.Urgency),
			Logistics:     string(l.Logistics),
			ContactMethod: l.ContactMethod,
		}
		for _, c := range l.Causes {
			form.CauseIDs = append(form.CauseIDs, c.ID)
		}
		payload := s.listingFormPayload(causes, form)
		payload.Editing = true
		payload.ListingID = id
		s.render(w, r, sess, "listing_form", "Edit listing", payload)
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	in := parseListingForm(r)
	err = s.service.UpdateListing(r.Context(), user, id, in)
	if fields := validationFields(err); fields != nil {
		payload := s.listingFormPayload(causes, in)
		payload.Editing = true
		payload.ListingID = id
		payload.Errors = fields
		s.renderStatus(w, r, sess, "listing_form", "Edit listing", http.StatusUnprocessableEntity, payload)
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, listingURL)
		return
	}
	s.flashRedirect(w, r, sess, "success", "Listing updated.", listingURL)
}

// --- Responses and threads ---

type respondPayload struct {
	Listing store.Listing
	Message string
	Errors  map[string]string
}

func (s *HTTPServer) handleRespond(w http.ResponseWriter, r *http.Request, sess webSession, user store.User, listingID int64) {
	listingURL := fmt.Sprintf("/listing/%d", listingID)

	if r.Method == http.MethodGet {
		page, err := s.service.ListingPage(r.Context(), listingID, &user)
		if err != nil {
			s.fail(w, r, sess, err, "/browse")
			return
		}
		if page.ExistingResponse != nil {
			http.Redirect(w, r, fmt.Sprintf("/responses/%d", page.ExistingResponse.ID), http.StatusSeeOther)
			return
		}
		if !page.CanRespond {
			s.flashRedirect(w, r, sess, "error", "This listing is not accepting responses.", listingURL)
			return
		}
		s.render(w, r, sess, "respond", "Respond to "+page.Listing.Title, respondPayload{Listing: page.Listing})
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	message := r.PostFormValue("message")
	responseID, err := s.service.Respond(r.Context(), user, listingID, message)
	if fields := validationFields(err); fields != nil {
		page, lerr := s.service.ListingPage(r.Context(), listingID, &user)
		if lerr != nil {
			s.fail(w, r, sess, lerr, listingURL)
			return
		}
		s.renderStatus(w, r, sess, "respond", "Respond to "+page.Listing.Title, http.StatusUnprocessableEntity, respondPayload{
			Listing: page.Listing, Message: message, Errors: fields,
		})
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, listingURL)
		return
	}
	s.flashRedirect(w, r, sess, "success", "Your response has been sent.", fmt.Sprintf("/responses/%d", responseID))
}

type threadListPayload struct {
	Threads []store.Response
}

func (s *HTTPServer) handleThreadList(w http.ResponseWriter, r *http.Request, sess webSession) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}
	threads, err := s.service.Threads(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, sess, err, "/dashboard")
		return
	}
	s.render(w, r, sess, "responses", "Your messages", threadListPayload{Threads: threads})
}

type threadPayload struct {
	ThreadPage
	Errors map[string]string
}

func (s *HTTPServer) routeThread(w http.ResponseWriter, r *http.Request, sess webSession, id int64, parts []string) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}
	threadURL := fmt.Sprintf("/responses/%d", id)

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		page, err := s.service.Thread(r.Context(), user, id)
		if err != nil {
			s.fail(w, r, sess, err, "/responses")
			return
		}
		s.render(w, r, sess, "thread", "Conversation", threadPayload{ThreadPage: page})
		return
	}

	switch parts[2] {
	case "message":
		if r.Method != http.MethodPost {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		err := s.service.SendMessage(r.Context(), user, id, r.PostFormValue("body"))
		if fields := validationFields(err); fields != nil {
			page, terr := s.service.Thread(r.Context(), user, id)
			if terr != nil {
				s.fail(w, r, sess, terr, "/responses")
				return
			}
			s.renderStatus(w, r, sess, "thread", "Conversation", http.StatusUnprocessableEntity, threadPayload{
				ThreadPage: page, Errors: fields,
			})
			return
		}
		if err != nil {
			s.fail(w, r, sess, err, threadURL)
			return
		}
		http.Redirect(w, r, threadURL, http.StatusSeeOther)
	case "status":
		if r.Method != http.MethodPost {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		if err := s.service.ChangeResponseStatus(r.Context(), user, id, r.PostFormValue("status")); err != nil {
			s.fail(w, r, sess, err, threadURL)
			return
		}
		s.flashRedirect(w, r, sess, "success", "Response updated.", threadURL)
	default:
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
	}
}
