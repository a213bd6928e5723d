package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/store"
)

func (s *HTTPServer) handleHome(w http.ResponseWriter, r *http.Request, sess webSession) {
	page, err := s.service.Home(r.Context())
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}
	s.render(w, r, sess, "home", "GivingGrid", page)
}

type browsePayload struct {
	Type       string
	Category   string
	County     string
	Urgency    string
	Cause      string
	Query      string
	Categories []string
	Counties   []string
	Urgencies  []string
	Causes     []store.Cause
	Listings   []store.Listing
	Total      int
	Page       int
	TotalPages int
	PrevURL    string
	NextURL    string
}

func (s *HTTPServer) handleBrowse(w http.ResponseWriter, r *http.Request, sess webSession) {
	q := r.URL.Query()
	page := pageParam(r)
	filter := store.ListingFilter{
		Type:      catalog.ListingType(q.Get("type")),
		Category:  q.Get("category"),
		County:    q.Get("county"),
		Urgency:   catalog.Urgency(q.Get("urgency")),
		Query:     strings.TrimSpace(q.Get("q")),
		CauseSlug: q.Get("cause"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}

	listings, total, err := s.service.BrowseListings(r.Context(), filter)
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}
	causes, err := s.service.ActiveCauses(r.Context())
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}

	pages := totalPages(total)
	prev, next := pageURLs("/browse", q, page, pages)
	s.render(w, r, sess, "browse", "Browse listings", browsePayload{
		Type:       string(filter.Type),
		Category:   filter.Category,
		County:     filter.County,
		Urgency:    string(filter.Urgency),
		Cause:      filter.CauseSlug,
		Query:      filter.Query,
		Categories: catalog.Categories(),
		Counties:   catalog.Counties(),
		Urgencies:  catalog.Urgencies(),
		Causes:     causes,
		Listings:   listings,
		Total:      total,
		Page:       page,
		TotalPages: pages,
		PrevURL:    prev,
		NextURL:    next,
	})
}

// --- Auth ---

type loginPayload struct {
	Email  string
	Errors map[string]string
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request, sess webSession) {
	if sess.User != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, sess, "login", "Sign in", loginPayload{})
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	email := r.PostFormValue("email")
	user, err := s.service.Login(r.Context(), email, r.PostFormValue("password"))
	if fields := validationFields(err); fields != nil {
		s.renderStatus(w, r, sess, "login", "Sign in", http.StatusUnprocessableEntity, loginPayload{Email: email, Errors: fields})
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, "/login")
		return
	}

	newSess, err := s.signIn(w, r, sess, user)
	if err != nil {
		s.fail(w, r, sess, err, "/login")
		return
	}
	s.flashRedirect(w, r, newSess, "success", "Welcome back, "+user.DisplayName+".", "/dashboard")
}

type registerPayload struct {
	Form     RegisterInput
	Errors   map[string]string
	Counties []string
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request, sess webSession) {
	if sess.User != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, sess, "register", "Create an account", registerPayload{Counties: catalog.Counties()})
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	in := RegisterInput{
		DisplayName: r.PostFormValue("display_name"),
		Email:       r.PostFormValue("email"),
		Password:    r.PostFormValue("password"),
		County:      r.PostFormValue("county"),
	}
	user, err := s.service.Register(r.Context(), in)
	if fields := validationFields(err); fields != nil {
		in.Password = ""
		s.renderStatus(w, r, sess, "register", "Create an account", http.StatusUnprocessableEntity, registerPayload{
			Form: in, Errors: fields, Counties: catalog.Counties(),
		})
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, "/register")
		return
	}

	newSess, err := s.signIn(w, r, sess, user)
	if err != nil {
		s.fail(w, r, sess, err, "/login")
		return
	}
	s.flashRedirect(w, r, newSess, "success", "Welcome to GivingGrid, "+user.DisplayName+".", "/dashboard")
}

// signIn swaps the anonymous session for a fresh authenticated one so the
// pre-login token and CSRF secret stop working.
func (s *HTTPServer) signIn(w http.ResponseWriter, r *http.Request, sess webSession, user store.User) (webSession, error) {
	_ = s.sessions.Destroy(r.Context(), sess.Token)
	token, rec, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		return webSession{}, err
	}
	s.setSessionCookie(w, token)
	return webSession{Token: token, Record: rec, User: &user}, nil
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, sess webSession) {
	if err := s.sessions.Destroy(r.Context(), sess.Token); err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}
	s.clearSessionCookie(w)
	newSess, err := s.startAnonymous(w, r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.flashRedirect(w, r, newSess, "info", "You have been signed out.", "/")
}

// --- Dashboard and profile ---

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, sess webSession) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}
	page, err := s.service.Dashboard(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}
	s.render(w, r, sess, "dashboard", "Dashboard", page)
}

type profilePayload struct {
	Form     ProfileInput
	Errors   map[string]string
	Counties []string
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request, sess webSession) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, sess, "profile", "Your profile", profilePayload{
			Form:     ProfileInput{DisplayName: user.DisplayName, County: user.County, Bio: user.Bio},
			Counties: catalog.Counties(),
		})
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	in := ProfileInput{
		DisplayName: r.PostFormValue("display_name"),
		County:      r.PostFormValue("county"),
		Bio:         r.PostFormValue("bio"),
	}
	err := s.service.UpdateProfile(r.Context(), user.ID, in)
	if fields := validationFields(err); fields != nil {
		s.renderStatus(w, r, sess, "profile", "Your profile", http.StatusUnprocessableEntity, profilePayload{
			Form: in, Errors: fields, Counties: catalog.Counties(),
		})
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, "/profile")
		return
	}
	s.flashRedirect(w, r, sess, "success", "Profile updated.", "/profile")
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request, sess webSession) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}

	err := s.service.ChangePassword(r.Context(), user.ID, r.PostFormValue("current_password"), r.PostFormValue("new_password"))
	if fields := validationFields(err); fields != nil {
		s.renderStatus(w, r, sess, "profile", "Your profile", http.StatusUnprocessableEntity, profilePayload{
			Form:     ProfileInput{DisplayName: user.DisplayName, County: user.County, Bio: user.Bio},
			Errors:   fields,
			Counties: catalog.Counties(),
		})
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, "/profile")
		return
	}
	s.flashRedirect(w, r, sess, "success", "Password changed.", "/profile")
}

// --- Organizations ---

type orgListPayload struct {
	Orgs       []store.Organization
	Total      int
	Page       int
	TotalPages int
	County     string
	Query      string
	Counties   []string
	PrevURL    string
	NextURL    string
}

func (s *HTTPServer) handleOrgList(w http.ResponseWriter, r *http.Request, sess webSession) {
	q := r.URL.Query()
	page := pageParam(r)
	county := q.Get("county")
	query := strings.TrimSpace(q.Get("q"))

	orgs, total, err := s.service.BrowseOrganizations(r.Context(), county, query, pageSize, (page-1)*pageSize)
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}

	pages := totalPages(total)
	prev, next := pageURLs("/organizations", q, page, pages)
	s.render(w, r, sess, "organizations", "Organizations", orgListPayload{
		Orgs:       orgs,
		Total:      total,
		Page:       page,
		TotalPages: pages,
		County:     county,
		Query:      query,
		Counties:   catalog.Counties(),
		PrevURL:    prev,
		NextURL:    next,
	})
}

func (s *HTTPServer) handleOrgDetail(w http.ResponseWriter, r *http.Request, sess webSession, orgID int64) {
	page, err := s.service.OrgPage(r.Context(), orgID)
	if err != nil {
		s.fail(w, r, sess, err, "/organizations")
		return
	}
	s.render(w, r, sess, "organization_detail", page.Org.Name, page)
}

type orgFormPayload struct {
	Form     OrgInput
	Errors   map[string]string
	Counties []string
}

func (s *HTTPServer) handleOrgRegister(w http.ResponseWriter, r *http.Request, sess webSession) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, sess, "organization_form", "Register an organization", orgFormPayload{
			Form:     OrgInput{CountyServed: user.County},
			Counties: catalog.Counties(),
		})
		return
	}
	if r.Method != http.MethodPost {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}

	in := OrgInput{
		Name:         r.PostFormValue("name"),
		Mission:      r.PostFormValue("mission"),
		Website:      r.PostFormValue("website"),
		ContactEmail: r.PostFormValue("contact_email"),
		CountyServed: r.PostFormValue("county_served"),
	}
	_, err := s.service.RegisterOrganization(r.Context(), user, in)
	if fields := validationFields(err); fields != nil {
		s.renderStatus(w, r, sess, "organization_form", "Register an organization", http.StatusUnprocessableEntity, orgFormPayload{
			Form: in, Errors: fields, Counties: catalog.Counties(),
		})
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, "/organizations")
		return
	}
	s.flashRedirect(w, r, sess, "success", "Your organization has been submitted for verification.", "/dashboard")
}

// --- Reports ---

type reportForm struct {
	Type     string
	TargetID int64
	Reason   string
	Details  string
}

type reportPayload struct {
	TypeLabel     string
	TargetSummary string
	Form          reportForm
	Reasons       []catalog.ReportReason
	Errors        map[string]string
}

func (s *HTTPServer) handleReportForm(w http.ResponseWriter, r *http.Request, sess webSession, kind string, targetID int64) {
	if kind != "listing" {
		s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
		return
	}
	page, err := s.service.ListingPage(r.Context(), targetID, nil)
	if err != nil {
		s.fail(w, r, sess, err, "/browse")
		return
	}
	s.render(w, r, sess, "report", "Report a listing", reportPayload{
		TypeLabel:     "listing",
		TargetSummary: page.Listing.Title,
		Form:          reportForm{Type: "listing", TargetID: targetID},
		Reasons:       catalog.ReportReasons(),
	})
}

func (s *HTTPServer) handleReportSubmit(w http.ResponseWriter, r *http.Request, sess webSession) {
	targetID, _ := strconv.ParseInt(r.PostFormValue("target_id"), 10, 64)
	in := ReportInput{
		Type:     r.PostFormValue("type"),
		TargetID: targetID,
		Reason:   r.PostFormValue("reason"),
		Details:  r.PostFormValue("details"),
	}

	back := "/"
	if in.Type == "listing" && targetID > 0 {
		back = fmt.Sprintf("/listing/%d", targetID)
	}

	err := s.service.FileReport(r.Context(), sess.User, in)
	if fields := validationFields(err); fields != nil {
		payload := reportPayload{
			TypeLabel: in.Type,
			Form:      reportForm{Type: in.Type, TargetID: targetID, Reason: in.Reason, Details: in.Details},
			Reasons:   catalog.ReportReasons(),
			Errors:    fields,
		}
		if in.Type == "listing" {
			if page, lerr := s.service.ListingPage(r.Context(), targetID, nil); lerr == nil {
				payload.TargetSummary = page.Listing.Title
			}
		}
		s.renderStatus(w, r, sess, "report", "Report a listing", http.StatusUnprocessableEntity, payload)
		return
	}
	var de *DomainError
	if errors.As(err, &de) && de.Kind == KindConflict {
		s.flashRedirect(w, r, sess, "info", de.Message, back)
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, back)
		return
	}
	s.flashRedirect(w, r, sess, "success", "Thank you. Your report has been received.", back)
}
