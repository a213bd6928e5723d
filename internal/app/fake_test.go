package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/session"
	"givinggrid/api/internal/store"
	"givinggrid/api/internal/view"
)

type fakeStore struct {
	createUserFn                   func(context.Context, store.User) (int64, error)
	getUserByEmailFn               func(context.Context, string) (store.User, error)
	getUserByIDFn                  func(context.Context, int64) (store.User, error)
	updateUserProfileFn            func(context.Context, int64, string, string, string) error
	updateUserPasswordFn           func(context.Context, int64, string) error
	createOrganizationFn           func(context.Context, store.Organization, int64) (int64, error)
	getOrganizationFn              func(context.Context, int64) (store.Organization, error)
	listVerifiedOrganizationsFn    func(context.Context, string, string, int, int) ([]store.Organization, int, error)
	listPendingOrganizationsFn     func(context.Context) ([]store.Organization, error)
	verifyOrganizationFn           func(context.Context, int64, int64) error
	rejectOrganizationFn           func(context.Context, int64) error
	listActiveCausesFn             func(context.Context) ([]store.Cause, error)
	getCauseBySlugFn               func(context.Context, string) (store.Cause, error)
	createListingFn                func(context.Context, store.Listing, []int64) (int64, error)
	updateListingFn                func(context.Context, store.Listing, []int64) error
	getListingFn                   func(context.Context, int64) (store.Listing, error)
	searchListingsFn               func(context.Context, store.ListingFilter) ([]store.Listing, int, error)
	listListingsByOwnerFn          func(context.Context, int64) ([]store.Listing, error)
	recentListingsFn               func(context.Context, int) ([]store.Listing, error)
	updateListingStatusFn          func(context.Context, int64, catalog.ListingStatus) error
	hardDeleteListingFn            func(context.Context, int64) error
	createResponseWithMessageFn    func(context.Context, int64, int64, string) (int64, error)
	getResponseFn                  func(context.Context, int64) (store.Response, error)
	getResponseForListingAndUserFn func(context.Context, int64, int64) (store.Response, error)
	listResponsesForUserFn         func(context.Context, int64) ([]store.Response, error)
	listResponsesForListingFn      func(context.Context, int64) ([]store.Response, error)
	updateResponseStatusFn         func(context.Context, int64, catalog.ResponseStatus) error
	listMessagesFn                 func(context.Context, int64) ([]store.Message, error)
	addMessageFn                   func(context.Context, int64, int64, string) (int64, error)
	markThreadReadFn               func(context.Context, int64, int64) error
	unreadMessageCountFn           func(context.Context, int64) (int, error)
	createReportFn                 func(context.Context, store.Report) (int64, error)
	getReportFn                    func(context.Context, int64) (store.Report, error)
	listOpenReportsFn              func(context.Context) ([]store.Report, error)
	listReportsFn                  func(context.Context, catalog.ReportStatus, int, int) ([]store.Report, int, error)
	countReportsByStatusFn         func(context.Context) (map[catalog.ReportStatus]int, error)
	resolveReportFn                func(context.Context, int64, int64, catalog.ResolutionAction, string, func(tx *sql.Tx) error) error
	siteStatsFn                    func(context.Context) (store.SiteStats, error)
	openListingCountsFn            func(context.Context) (map[catalog.ListingType]int64, error)
	adminActivityFn                func(context.Context, int) ([]store.ActivityItem, error)
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) (int64, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return 1, nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, store.ErrNotFound
}
func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, store.ErrNotFound
}
func (f *fakeStore) UpdateUserProfile(ctx context.Context, id int64, displayName, county, bio string) error {
	if f.updateUserProfileFn != nil {
		return f.updateUserProfileFn(ctx, id, displayName, county, bio)
	}
	return nil
}
func (f *fakeStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	if f.updateUserPasswordFn != nil {
		return f.updateUserPasswordFn(ctx, id, passwordHash)
	}
	return nil
}

func (f *fakeStore) CreateOrganization(ctx context.Context, org store.Organization, creatorID int64) (int64, error) {
	if f.createOrganizationFn != nil {
		return f.createOrganizationFn(ctx, org, creatorID)
	}
	return 1, nil
}
func (f *fakeStore) GetOrganization(ctx context.Context, id int64) (store.Organization, error) {
	if f.getOrganizationFn != nil {
		return f.getOrganizationFn(ctx, id)
	}
	return store.Organization{}, store.ErrNotFound
}
func (f *fakeStore) ListVerifiedOrganizations(ctx context.Context, county, query string, limit, offset int) ([]store.Organization, int, error) {
	if f.listVerifiedOrganizationsFn != nil {
		return f.listVerifiedOrganizationsFn(ctx, county, query, limit, offset)
	}
	return nil, 0, nil
}
func (f *fakeStore) ListPendingOrganizations(ctx context.Context) ([]store.Organization, error) {
	if f.listPendingOrganizationsFn != nil {
		return f.listPendingOrganizationsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) VerifyOrganization(ctx context.Context, id, adminID int64) error {
	if f.verifyOrganizationFn != nil {
		return f.verifyOrganizationFn(ctx, id, adminID)
	}
	return nil
}
func (f *fakeStore) RejectOrganization(ctx context.Context, id int64) error {
	if f.rejectOrganizationFn != nil {
		return f.rejectOrganizationFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListActiveCauses(ctx context.Context) ([]store.Cause, error) {
	if f.listActiveCausesFn != nil {
		return f.listActiveCausesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetCauseBySlug(ctx context.Context, slug string) (store.Cause, error) {
	if f.getCauseBySlugFn != nil {
		return f.getCauseBySlugFn(ctx, slug)
	}
	return store.Cause{}, store.ErrNotFound
}

func (f *fakeStore) CreateListing(ctx context.Context, listing store.Listing, causeIDs []int64) (int64, error) {
	if f.createListingFn != nil {
		return f.createListingFn(ctx, listing, causeIDs)
	}
	return 1, nil
}
func (f *fakeStore) UpdateListing(ctx context.Context, listing store.Listing, causeIDs []int64) error {
	if f.updateListingFn != nil {
		return f.updateListingFn(ctx, listing, causeIDs)
	}
	return nil
}
func (f *fakeStore) GetListing(ctx context.Context, id int64) (store.Listing, error) {
	if f.getListingFn != nil {
		return f.getListingFn(ctx, id)
	}
	return store.Listing{}, store.ErrNotFound
}
func (f *fakeStore) SearchListings(ctx context.Context, filter store.ListingFilter) ([]store.Listing, int, error) {
	if f.searchListingsFn != nil {
		return f.searchListingsFn(ctx, filter)
	}
	return nil, 0, nil
}
func (f *fakeStore) ListListingsByOwner(ctx context.Context, ownerID int64) ([]store.Listing, error) {
	if f.listListingsByOwnerFn != nil {
		return f.listListingsByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}
func (f *fakeStore) RecentListings(ctx context.Context, limit int) ([]store.Listing, error) {
	if f.recentListingsFn != nil {
		return f.recentListingsFn(ctx, limit)
	}
	return nil, nil
}
func (f *fakeStore) UpdateListingStatus(ctx context.Context, id int64, status catalog.ListingStatus) error {
	if f.updateListingStatusFn != nil {
		return f.updateListingStatusFn(ctx, id, status)
	}
	return nil
}
func (f *fakeStore) HardDeleteListing(ctx context.Context, id int64) error {
	if f.hardDeleteListingFn != nil {
		return f.hardDeleteListingFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) CreateResponseWithMessage(ctx context.Context, listingID, responderID int64, body string) (int64, error) {
	if f.createResponseWithMessageFn != nil {
		return f.createResponseWithMessageFn(ctx, listingID, responderID, body)
	}
	return 1, nil
}
func (f *fakeStore) GetResponse(ctx context.Context, id int64) (store.Response, error) {
	if f.getResponseFn != nil {
		return f.getResponseFn(ctx, id)
	}
	return store.Response{}, store.ErrNotFound
}
func (f *fakeStore) GetResponseForListingAndUser(ctx context.Context, listingID, responderID int64) (store.Response, error) {
	if f.getResponseForListingAndUserFn != nil {
		return f.getResponseForListingAndUserFn(ctx, listingID, responderID)
	}
	return store.Response{}, store.ErrNotFound
}
func (f *fakeStore) ListResponsesForUser(ctx context.Context, userID int64) ([]store.Response, error) {
	if f.listResponsesForUserFn != nil {
		return f.listResponsesForUserFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) ListResponsesForListing(ctx context.Context, listingID int64) ([]store.Response, error) {
	if f.listResponsesForListingFn != nil {
		return f.listResponsesForListingFn(ctx, listingID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateResponseStatus(ctx context.Context, id int64, status catalog.ResponseStatus) error {
	if f.updateResponseStatusFn != nil {
		return f.updateResponseStatusFn(ctx, id, status)
	}
	return nil
}
func (f *fakeStore) ListMessages(ctx context.Context, responseID int64) ([]store.Message, error) {
	if f.listMessagesFn != nil {
		return f.listMessagesFn(ctx, responseID)
	}
	return nil, nil
}
func (f *fakeStore) AddMessage(ctx context.Context, responseID, senderID int64, body string) (int64, error) {
	if f.addMessageFn != nil {
		return f.addMessageFn(ctx, responseID, senderID, body)
	}
	return 1, nil
}
func (f *fakeStore) MarkThreadRead(ctx context.Context, responseID, readerID int64) error {
	if f.markThreadReadFn != nil {
		return f.markThreadReadFn(ctx, responseID, readerID)
	}
	return nil
}
func (f *fakeStore) UnreadMessageCount(ctx context.Context, userID int64) (int, error) {
	if f.unreadMessageCountFn != nil {
		return f.unreadMessageCountFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) CreateReport(ctx context.Context, report store.Report) (int64, error) {
	if f.createReportFn != nil {
		return f.createReportFn(ctx, report)
	}
	return 1, nil
}
func (f *fakeStore) GetReport(ctx context.Context, id int64) (store.Report, error) {
	if f.getReportFn != nil {
		return f.getReportFn(ctx, id)
	}
	return store.Report{}, store.ErrNotFound
}
func (f *fakeStore) ListOpenReports(ctx context.Context) ([]store.Report, error) {
	if f.listOpenReportsFn != nil {
		return f.listOpenReportsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) ListReports(ctx context.Context, status catalog.ReportStatus, limit, offset int) ([]store.Report, int, error) {
	if f.listReportsFn != nil {
		return f.listReportsFn(ctx, status, limit, offset)
	}
	return nil, 0, nil
}
func (f *fakeStore) CountReportsByStatus(ctx context.Context) (map[catalog.ReportStatus]int, error) {
	if f.countReportsByStatusFn != nil {
		return f.countReportsByStatusFn(ctx)
	}
	return map[catalog.ReportStatus]int{}, nil
}
func (f *fakeStore) ResolveReport(ctx context.Context, reportID, adminID int64, action catalog.ResolutionAction, note string, sideEffect func(tx *sql.Tx) error) error {
	if f.resolveReportFn != nil {
		return f.resolveReportFn(ctx, reportID, adminID, action, note, sideEffect)
	}
	return nil
}

func (f *fakeStore) SiteStats(ctx context.Context) (store.SiteStats, error) {
	if f.siteStatsFn != nil {
		return f.siteStatsFn(ctx)
	}
	return store.SiteStats{}, nil
}
func (f *fakeStore) OpenListingCounts(ctx context.Context) (map[catalog.ListingType]int64, error) {
	if f.openListingCountsFn != nil {
		return f.openListingCountsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) AdminActivity(ctx context.Context, limit int) ([]store.ActivityItem, error) {
	if f.adminActivityFn != nil {
		return f.adminActivityFn(ctx, limit)
	}
	return nil, nil
}

type fakeMailer struct {
	configured   bool
	newResponses []string
	statusMails  []string
	orgDecisions []bool
}

func (m *fakeMailer) IsConfigured() bool { return m.configured }
func (m *fakeMailer) SendNewResponse(to, ownerName, responderName, listingTitle string, listingID int64) error {
	m.newResponses = append(m.newResponses, to)
	return nil
}
func (m *fakeMailer) SendResponseStatus(to, responderName, listingTitle, status string, responseID int64) error {
	m.statusMails = append(m.statusMails, to)
	return nil
}
func (m *fakeMailer) SendOrgDecision(to, contactName, orgName string, approved bool, orgID int64) error {
	m.orgDecisions = append(m.orgDecisions, approved)
	return nil
}

func newTestSessions(t *testing.T) *session.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisStoreWithClient(client, time.Hour)
}

func newTestService(t *testing.T, fs *fakeStore) (*Service, *fakeMailer) {
	t.Helper()
	mail := &fakeMailer{}
	return NewService(fs, newTestSessions(t), mail), mail
}

func newTestServer(t *testing.T, fs *fakeStore) (*HTTPServer, *session.RedisStore) {
	t.Helper()
	sessions := newTestSessions(t)
	views, err := view.New()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	service := NewService(fs, sessions, &fakeMailer{})
	return NewHTTPServer(service, sessions, views, false), sessions
}
