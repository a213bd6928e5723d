package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/lifecycle"
	"givinggrid/api/internal/store"
)

// --- Reports ---

type ReportInput struct {
	Type     string
	TargetID int64
	Reason   string
	Details  string
}

// FileReport records a moderation report. The reporter is optional:
// anonymous reports are accepted, but only signed-in reporters are
// deduplicated against their earlier reports of the same target.
func (s *Service) FileReport(ctx context.Context, reporter *store.User, in ReportInput) error {
	fields := map[string]string{}
	if !catalog.ValidReportType(in.Type) {
		fields["type"] = "Unknown report type."
	}
	if !catalog.ValidReportReason(in.Reason) {
		fields["reason"] = "Please pick a reason."
	}
	details := strings.TrimSpace(in.Details)
	if in.Reason == "other" && len(details) < 10 {
		fields["details"] = "Please describe the problem in at least 10 characters."
	}
	if len(details) > 2000 {
		fields["details"] = "Details must be at most 2000 characters."
	}
	if len(fields) > 0 {
		return validationError(fields)
	}

	if err := s.reportTargetExists(ctx, catalog.ReportType(in.Type), in.TargetID); err != nil {
		return err
	}

	report := store.Report{
		Type:     catalog.ReportType(in.Type),
		TargetID: in.TargetID,
		Reason:   catalog.ReportReason(in.Reason),
		Details:  details,
	}
	if reporter != nil {
		report.ReporterID = sql.NullInt64{Int64: reporter.ID, Valid: true}
	}

	_, err := s.store.CreateReport(ctx, report)
	if errors.Is(err, store.ErrDuplicate) {
		return conflict("You have already reported this.")
	}
	return err
}

func (s *Service) reportTargetExists(ctx context.Context, kind catalog.ReportType, targetID int64) error {
	var err error
	switch kind {
	case catalog.ReportListing:
		_, err = s.store.GetListing(ctx, targetID)
	case catalog.ReportUser:
		_, err = s.store.GetUserByID(ctx, targetID)
	case catalog.ReportResponse:
		_, err = s.store.GetResponse(ctx, targetID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return notFound("The reported item no longer exists.")
	}
	return err
}

type ReportQueuePage struct {
	Reports []store.Report
	Total   int
	Counts  map[catalog.ReportStatus]int
}

// ReportQueue lists reports for the admin screen. An empty status shows
// the open queue (pending first); otherwise reports with that status,
// paginated newest-first.
func (s *Service) ReportQueue(ctx context.Context, status string, limit, offset int) (ReportQueuePage, error) {
	counts, err := s.store.CountReportsByStatus(ctx)
	if err != nil {
		return ReportQueuePage{}, err
	}
	page := ReportQueuePage{Counts: counts}

	if status == "" {
		page.Reports, err = s.store.ListOpenReports(ctx)
		page.Total = len(page.Reports)
		return page, err
	}
	if !catalog.ValidReportStatus(status) {
		return ReportQueuePage{}, notFound("Unknown report status.")
	}
	page.Reports, page.Total, err = s.store.ListReports(ctx, catalog.ReportStatus(status), limit, offset)
	return page, err
}

type ReportDetailPage struct {
	Report     store.Report
	Actionable bool
}

func (s *Service) ReportDetail(ctx context.Context, reportID int64) (ReportDetailPage, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if errors.Is(err, store.ErrNotFound) {
		return ReportDetailPage{}, notFound("Report not found.")
	}
	if err != nil {
		return ReportDetailPage{}, err
	}
	actionable := report.Status == catalog.ReportPending || report.Status == catalog.ReportReviewed
	return ReportDetailPage{Report: report, Actionable: actionable}, nil
}

// ResolveReport applies an admin's decision. The dismiss action only
// stamps the report; close_listing and deactivate_user also apply the
// side effect in the same transaction as the stamp. close_listing drives
// the listing status machine with the moderator capability, so an
// already-closed listing surfaces an invalid transition.
func (s *Service) ResolveReport(ctx context.Context, admin store.User, reportID int64, action, note string) error {
	report, err := s.store.GetReport(ctx, reportID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Report not found.")
	}
	if err != nil {
		return err
	}

	var sideEffect func(tx *sql.Tx) error
	switch catalog.ResolutionAction(action) {
	case catalog.ActionDismiss:
	case catalog.ActionCloseListing:
		if report.Type != catalog.ReportListing {
			return validationError(map[string]string{"action": "Closing a listing only applies to listing reports."})
		}
		listing, err := s.store.GetListing(ctx, report.TargetID)
		if errors.Is(err, store.ErrNotFound) {
			return conflict("The reported listing no longer exists.")
		}
		if err != nil {
			return err
		}
		if err := lifecycle.ListingTransition(listing.Status, catalog.ListingClosed, lifecycle.CapabilityModerator); err != nil {
			var ite *lifecycle.InvalidTransitionError
			if errors.As(err, &ite) {
				return invalidTransition("listing", ite.From, ite.To)
			}
			return err
		}
		sideEffect = store.CloseListingTx(ctx, report.TargetID)
	case catalog.ActionDeactivateUser:
		if report.Type != catalog.ReportUser {
			return validationError(map[string]string{"action": "Deactivating a user only applies to user reports."})
		}
		sideEffect = store.DeactivateUserTx(ctx, report.TargetID)
	default:
		return validationError(map[string]string{"action": "Unknown resolution action."})
	}

	err = s.store.ResolveReport(ctx, reportID, admin.ID, catalog.ResolutionAction(action), strings.TrimSpace(note), sideEffect)
	if errors.Is(err, store.ErrNotFound) {
		return conflict("That report has already been resolved.")
	}
	return err
}

// --- Organization verification ---

func (s *Service) PendingOrganizations(ctx context.Context) ([]store.Organization, error) {
	return s.store.ListPendingOrganizations(ctx)
}

// VerifyOrganization marks an organization verified and notifies its
// creator. Verifying twice is reported as a conflict, not an error page.
func (s *Service) VerifyOrganization(ctx context.Context, admin store.User, orgID int64) error {
	err := s.store.VerifyOrganization(ctx, orgID, admin.ID)
	if errors.Is(err, store.ErrDuplicate) {
		return conflict("That organization is already verified.")
	}
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Organization not found.")
	}
	if err != nil {
		return err
	}
	s.notifyOrgDecision(ctx, orgID, true)
	return nil
}

// RejectOrganization deletes an unverified organization and detaches its
// members.
func (s *Service) RejectOrganization(ctx context.Context, orgID int64) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Organization not found.")
	}
	if err != nil {
		return err
	}
	if org.IsVerified {
		return conflict("That organization is already verified and cannot be rejected.")
	}

	err = s.store.RejectOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return conflict("That organization was already handled.")
	}
	if err != nil {
		return err
	}

	s.notifyCreatorOfRejection(ctx, org)
	return nil
}

func (s *Service) notifyOrgDecision(ctx context.Context, orgID int64, approved bool) {
	if !s.mail.IsConfigured() {
		return
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"org decision notification skipped","error":%q}`, err.Error())
		return
	}
	s.sendOrgDecision(ctx, org, approved)
}

func (s *Service) notifyCreatorOfRejection(ctx context.Context, org store.Organization) {
	if !s.mail.IsConfigured() {
		return
	}
	s.sendOrgDecision(ctx, org, false)
}

func (s *Service) sendOrgDecision(ctx context.Context, org store.Organization, approved bool) {
	creator, err := s.store.GetUserByID(ctx, org.CreatedByID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"org decision notification skipped","error":%q}`, err.Error())
		return
	}
	if err := s.mail.SendOrgDecision(creator.Email, creator.DisplayName, org.Name, approved, org.ID); err != nil {
		log.Printf(`{"level":"warn","msg":"org decision notification failed","error":%q}`, err.Error())
	}
}

// --- Admin dashboard ---

type AdminDashboardPage struct {
	Stats    store.SiteStats
	Activity []store.ActivityItem
}

func (s *Service) AdminDashboard(ctx context.Context) (AdminDashboardPage, error) {
	stats, err := s.store.SiteStats(ctx)
	if err != nil {
		return AdminDashboardPage{}, err
	}
	activity, err := s.store.AdminActivity(ctx, 20)
	if err != nil {
		return AdminDashboardPage{}, err
	}
	return AdminDashboardPage{Stats: stats, Activity: activity}, nil
}
