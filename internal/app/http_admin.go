package app

import (
	"fmt"
	"net/http"
	"strconv"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/store"
)

func (s *HTTPServer) routeAdmin(w http.ResponseWriter, r *http.Request, sess webSession, parts []string) {
	admin, ok := s.requireAdmin(w, r, sess)
	if !ok {
		return
	}

	if len(parts) == 3 && parts[1] == "verify" && r.Method == http.MethodPost {
		if id, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			s.handleVerifyOrg(w, r, sess, admin, id)
			return
		}
	}

	if len(parts) == 3 && parts[1] == "reject" && r.Method == http.MethodPost {
		if id, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			s.handleRejectOrg(w, r, sess, id)
			return
		}
	}

	if len(parts) == 3 && parts[1] == "reports" && r.Method == http.MethodGet {
		if id, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			s.handleReportDetail(w, r, sess, id)
			return
		}
	}

	if len(parts) == 4 && parts[1] == "reports" && parts[3] == "resolve" && r.Method == http.MethodPost {
		if id, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			s.handleResolveReport(w, r, sess, admin, id)
			return
		}
	}

	s.errorPage(w, sess, http.StatusNotFound, "Page not found.")
}

func (s *HTTPServer) handleAdminDashboard(w http.ResponseWriter, r *http.Request, sess webSession) {
	if _, ok := s.requireAdmin(w, r, sess); !ok {
		return
	}
	page, err := s.service.AdminDashboard(r.Context())
	if err != nil {
		s.fail(w, r, sess, err, "/")
		return
	}
	s.render(w, r, sess, "admin_dashboard", "Admin", page)
}

type verifyQueuePayload struct {
	Orgs []store.Organization
}

func (s *HTTPServer) handleAdminVerifyList(w http.ResponseWriter, r *http.Request, sess webSession) {
	if _, ok := s.requireAdmin(w, r, sess); !ok {
		return
	}
	orgs, err := s.service.PendingOrganizations(r.Context())
	if err != nil {
		s.fail(w, r, sess, err, "/admin")
		return
	}
	s.render(w, r, sess, "admin_verify", "Verification queue", verifyQueuePayload{Orgs: orgs})
}

func (s *HTTPServer) handleVerifyOrg(w http.ResponseWriter, r *http.Request, sess webSession, admin store.User, orgID int64) {
	if err := s.service.VerifyOrganization(r.Context(), admin, orgID); err != nil {
		s.fail(w, r, sess, err, "/admin/verify")
		return
	}
	s.flashRedirect(w, r, sess, "success", "Organization verified.", "/admin/verify")
}

func (s *HTTPServer) handleRejectOrg(w http.ResponseWriter, r *http.Request, sess webSession, orgID int64) {
	if err := s.service.RejectOrganization(r.Context(), orgID); err != nil {
		s.fail(w, r, sess, err, "/admin/verify")
		return
	}
	s.flashRedirect(w, r, sess, "success", "Organization rejected.", "/admin/verify")
}

type reportListPayload struct {
	Counts     map[catalog.ReportStatus]int
	Status     string
	Statuses   []string
	Reports    []store.Report
	Page       int
	TotalPages int
	PrevURL    string
	NextURL    string
}

func (s *HTTPServer) handleAdminReportList(w http.ResponseWriter, r *http.Request, sess webSession) {
	if _, ok := s.requireAdmin(w, r, sess); !ok {
		return
	}

	q := r.URL.Query()
	status := q.Get("status")
	page := pageParam(r)

	queue, err := s.service.ReportQueue(r.Context(), status, pageSize, (page-1)*pageSize)
	if err != nil {
		s.fail(w, r, sess, err, "/admin")
		return
	}

	pages := 1
	if status != "" {
		pages = totalPages(queue.Total)
	}
	prev, next := pageURLs("/admin/reports", q, page, pages)
	s.render(w, r, sess, "admin_reports", "Reports", reportListPayload{
		Counts:     queue.Counts,
		Status:     status,
		Statuses:   catalog.ReportStatuses(),
		Reports:    queue.Reports,
		Page:       page,
		TotalPages: pages,
		PrevURL:    prev,
		NextURL:    next,
	})
}

func (s *HTTPServer) handleReportDetail(w http.ResponseWriter, r *http.Request, sess webSession, reportID int64) {
	page, err := s.service.ReportDetail(r.Context(), reportID)
	if err != nil {
		s.fail(w, r, sess, err, "/admin/reports")
		return
	}
	s.render(w, r, sess, "admin_report_detail", fmt.Sprintf("Report #%d", reportID), page)
}

func (s *HTTPServer) handleResolveReport(w http.ResponseWriter, r *http.Request, sess webSession, admin store.User, reportID int64) {
	back := fmt.Sprintf("/admin/reports/%d", reportID)
	err := s.service.ResolveReport(r.Context(), admin, reportID, r.PostFormValue("action"), r.PostFormValue("notes"))
	if fields := validationFields(err); fields != nil {
		for _, msg := range fields {
			s.flash(r.Context(), sess, "error", msg)
			break
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err != nil {
		s.fail(w, r, sess, err, back)
		return
	}
	s.flashRedirect(w, r, sess, "success", "Report resolved.", "/admin/reports")
}
