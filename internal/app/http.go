package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/session"
	"givinggrid/api/internal/store"
	"givinggrid/api/internal/util"
	"givinggrid/api/internal/view"
)

const (
	sessionCookie = "gg_session"
	pageSize      = 20
)

type HTTPServer struct {
	service  *Service
	sessions sessionStore
	views    *view.Renderer
	secure   bool
}

func NewHTTPServer(service *Service, sessions sessionStore, views *view.Renderer, secure bool) *HTTPServer {
	return &HTTPServer{service: service, sessions: sessions, views: views, secure: secure}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

// webSession is the per-request session state. User is nil for anonymous
// visitors; the record still carries their CSRF token and flash queue.
type webSession struct {
	Token  string
	Record session.Record
	User   *store.User
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		s.handleHealthz(w, r)
		return
	}

	sess, err := s.loadSession(w, r)
	if err != nil {
		log.Printf(`{"level":"error","msg":"session load failed","error":%q}`, err.Error())
		s.errorPage(w, webSession{}, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			s.errorPage(w, sess, http.StatusBadRequest, "Could not read the submitted form.")
			return
		}
		if !s.csrfOK(r, sess) {
			s.errorPage(w, sess, http.StatusForbidden, "Your form session has expired. Please go back and try again.")
			return
		}
	}

	switch r.URL.Path {
	case "/":
		if r.Method == http.MethodGet {
			s.handleHome(w, r, sess)
			return
		}
	case "/browse":
		if r.Method == http.MethodGet {
			s.handleBrowse(w, r, sess)
			return
		}
	case "/login":
		s.handleLogin(w, r, sess)
		return
	case "/register":
		s.handleRegister(w, r, sess)
		return
	case "/logout":
		if r.Method == http.MethodPost {
			s.handleLogout(w, r, sess)
			return
		}
	case "/dashboard":
		if r.Method == http.MethodGet {
			s.handleDashboard(w, r, sess)
			return
		}
	case "/post":
		s.handlePostListing(w, r, sess)
		return
	case "/responses":
		if r.Method == http.MethodGet {
			s.handleThreadList(w, r, sess)
			return
		}
	case "/organizations":
		if r.Method == http.MethodGet {
			s.handleOrgList(w, r, sess)
			return
		}
	case "/organizations/register":
		s.handleOrgRegister(w, r, sess)
		return
	case "/profile":
		s.handleProfile(w, r, sess)
		return
	case "/profile/password":
		if r.Method == http.MethodPost {
			s.handleChangePassword(w, r, sess)
			return
		}
	case "/report":
		if r.Method == http.MethodPost {
			s.handleReportSubmit(w, r, sess)
			return
		}
	case "/admin":
		if r.Method == http.MethodGet {
			s.handleAdminDashboard(w, r, sess)
			return
		}
	case "/admin/verify":
		if r.Method == http.MethodGet {
			s.handleAdminVerifyList(w, r, sess)
			return
		}
	case "/admin/reports":
		if r.Method == http.MethodGet {
			s.handleAdminReportList(w, r, sess)
			return
		}
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 2 && parts[0] == "listing" {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		s.routeListing(w, r, sess, id, parts)
		return
	}

	if len(parts) >= 2 && parts[0] == "responses" {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
			return
		}
		s.routeThread(w, r, sess, id, parts)
		return
	}

	if len(parts) == 2 && parts[0] == "organization" {
		if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil && r.Method == http.MethodGet {
			s.handleOrgDetail(w, r, sess, id)
			return
		}
	}

	if len(parts) == 3 && parts[0] == "report" && r.Method == http.MethodGet {
		if id, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			s.handleReportForm(w, r, sess, parts[1], id)
			return
		}
	}

	if len(parts) >= 2 && parts[0] == "admin" {
		s.routeAdmin(w, r, sess, parts)
		return
	}

	s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.service.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"ok":false,"error":%q}`, err.Error())
		return
	}
	fmt.Fprint(w, `{"ok":true}`)
}

// --- Session plumbing ---

func (s *HTTPServer) loadSession(w http.ResponseWriter, r *http.Request) (webSession, error) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		rec, err := s.sessions.Get(r.Context(), cookie.Value)
		switch {
		case err == nil:
			sess := webSession{Token: cookie.Value, Record: rec}
			if rec.UserID > 0 {
				user, err := s.service.SessionUser(r.Context(), rec.UserID)
				if errors.Is(err, store.ErrNotFound) {
					// Deactivated or deleted mid-session: drop to anonymous.
					_ = s.sessions.Destroy(r.Context(), cookie.Value)
					return s.startAnonymous(w, r)
				}
				if err != nil {
					return webSession{}, err
				}
				sess.User = &user
			}
			return sess, nil
		case errors.Is(err, session.ErrNotFound):
			return s.startAnonymous(w, r)
		default:
			return webSession{}, err
		}
	}
	return s.startAnonymous(w, r)
}

func (s *HTTPServer) startAnonymous(w http.ResponseWriter, r *http.Request) (webSession, error) {
	token, rec, err := s.sessions.Create(r.Context(), 0)
	if err != nil {
		return webSession{}, err
	}
	s.setSessionCookie(w, token)
	return webSession{Token: token, Record: rec}, nil
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) csrfOK(r *http.Request, sess webSession) bool {
	token := r.PostFormValue("csrf_token")
	if token == "" {
		token = r.Header.Get("X-CSRF-Token")
	}
	return token != "" && util.TokensEqual(token, sess.Record.CSRFToken)
}

func (s *HTTPServer) requireUser(w http.ResponseWriter, r *http.Request, sess webSession) (store.User, bool) {
	if sess.User == nil {
		s.flash(r.Context(), sess, "info", "Please sign in to continue.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return store.User{}, false
	}
	return *sess.User, true
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request, sess webSession) (store.User, bool) {
	user, ok := s.requireUser(w, r, sess)
	if !ok {
		return store.User{}, false
	}
	if user.Role != catalog.RoleAdmin {
		s.errorPage(w, sess, http.StatusForbidden, "You do not have access to that page.")
		return store.User{}, false
	}
	return user, true
}

// --- Rendering ---

func (s *HTTPServer) render(w http.ResponseWriter, r *http.Request, sess webSession, page, title string, data any) {
	s.renderStatus(w, r, sess, page, title, http.StatusOK, data)
}

func (s *HTTPServer) renderStatus(w http.ResponseWriter, r *http.Request, sess webSession, page, title string, status int, data any) {
	flashes, err := s.sessions.PopFlashes(r.Context(), sess.Token)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"pop flashes failed","error":%q}`, err.Error())
	}
	base := view.Base{
		Title:     title,
		User:      sess.User,
		CSRFToken: sess.Record.CSRFToken,
		Flashes:   flashes,
		Data:      data,
	}
	if sess.User != nil {
		base.UnreadCount = s.service.UnreadCount(r.Context(), sess.User.ID)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.views.Render(w, page, base); err != nil {
		log.Printf(`{"level":"error","msg":"render failed","page":%q,"error":%q}`, page, err.Error())
	}
}

type errorData struct {
	Status  int
	Message string
}

func (s *HTTPServer) errorPage(w http.ResponseWriter, sess webSession, status int, message string) {
	base := view.Base{Title: "Error", User: sess.User, CSRFToken: sess.Record.CSRFToken, Data: errorData{Status: status, Message: message}}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.views.Render(w, "error", base); err != nil {
		log.Printf(`{"level":"error","msg":"render failed","page":"error","error":%q}`, err.Error())
	}
}

func (s *HTTPServer) flash(ctx context.Context, sess webSession, level, message string) {
	if err := s.sessions.PushFlash(ctx, sess.Token, session.Flash{Level: level, Message: message}); err != nil {
		log.Printf(`{"level":"warn","msg":"push flash failed","error":%q}`, err.Error())
	}
}

func (s *HTTPServer) flashRedirect(w http.ResponseWriter, r *http.Request, sess webSession, level, message, location string) {
	s.flash(r.Context(), sess, level, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// fail handles service errors a handler did not claim. Validation errors
// reaching here mean the handler forgot to redisplay its form; they get a
// generic 422 rather than a blank page.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, sess webSession, err error, fallback string) {
	var de *DomainError
	if errors.As(err, &de) {
		switch de.Kind {
		case KindNotFound:
			s.errorPage(w, sess, http.StatusNotFound, de.Message)
		case KindForbidden:
			s.errorPage(w, sess, http.StatusForbidden, de.Message)
		case KindConflict, KindInvalidTransition:
			s.flashRedirect(w, r, sess, "error", de.Message, fallback)
		default:
			s.errorPage(w, sess, http.StatusUnprocessableEntity, "Please correct the errors and try again.")
		}
		return
	}
	log.Printf(`{"level":"error","msg":"request failed","path":%q,"error":%q}`, r.URL.Path, err.Error())
	s.errorPage(w, sess, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

// validationFields unwraps a validation error's field map, or nil.
func validationFields(err error) map[string]string {
	var de *DomainError
	if errors.As(err, &de) && de.Kind == KindValidation {
		return de.Fields
	}
	return nil
}

// --- Pagination ---

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func totalPages(total int) int {
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// pageURLs builds prev/next links preserving the current filters.
func pageURLs(path string, query url.Values, page, pages int) (prev, next string) {
	build := func(p int) string {
		q := url.Values{}
		for k, vs := range query {
			if k != "page" {
				q[k] = vs
			}
		}
		if p > 1 {
			q.Set("page", strconv.Itoa(p))
		}
		if encoded := q.Encode(); encoded != "" {
			return path + "?" + encoded
		}
		return path
	}
	if page > 1 {
		prev = build(page - 1)
	}
	if page < pages {
		next = build(page + 1)
	}
	return prev, next
}

// --- Middleware ---

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
