// Package app holds the business logic (Service) and the HTTP boundary
// (HTTPServer).
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"givinggrid/api/internal/authpw"
	"givinggrid/api/internal/catalog"
	"givinggrid/api/internal/session"
	"givinggrid/api/internal/store"
)

// dataStore is everything the service needs from the database layer.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user store.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id int64) (store.User, error)
	UpdateUserProfile(ctx context.Context, id int64, displayName, county, bio string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error

	CreateOrganization(ctx context.Context, org store.Organization, creatorID int64) (int64, error)
	GetOrganization(ctx context.Context, id int64) (store.Organization, error)
	ListVerifiedOrganizations(ctx context.Context, county, query string, limit, offset int) ([]store.Organization, int, error)
	ListPendingOrganizations(ctx context.Context) ([]store.Organization, error)
	VerifyOrganization(ctx context.Context, id, adminID int64) error
	RejectOrganization(ctx context.Context, id int64) error

	ListActiveCauses(ctx context.Context) ([]store.Cause, error)
	GetCauseBySlug(ctx context.Context, slug string) (store.Cause, error)

	CreateListing(ctx context.Context, listing store.Listing, causeIDs []int64) (int64, error)
	UpdateListing(ctx context.Context, listing store.Listing, causeIDs []int64) error
	GetListing(ctx context.Context, id int64) (store.Listing, error)
	SearchListings(ctx context.Context, filter store.ListingFilter) ([]store.Listing, int, error)
	ListListingsByOwner(ctx context.Context, ownerID int64) ([]store.Listing, error)
	RecentListings(ctx context.Context, limit int) ([]store.Listing, error)
	UpdateListingStatus(ctx context.Context, id int64, status catalog.ListingStatus) error
	HardDeleteListing(ctx context.Context, id int64) error

	CreateResponseWithMessage(ctx context.Context, listingID, responderID int64, body string) (int64, error)
	GetResponse(ctx context.Context, id int64) (store.Response, error)
	GetResponseForListingAndUser(ctx context.Context, listingID, responderID int64) (store.Response, error)
	ListResponsesForUser(ctx context.Context, userID int64) ([]store.Response, error)
	ListResponsesForListing(ctx context.Context, listingID int64) ([]store.Response, error)
	UpdateResponseStatus(ctx context.Context, id int64, status catalog.ResponseStatus) error
	ListMessages(ctx context.Context, responseID int64) ([]store.Message, error)
	AddMessage(ctx context.Context, responseID, senderID int64, body string) (int64, error)
	MarkThreadRead(ctx context.Context, responseID, readerID int64) error
	UnreadMessageCount(ctx context.Context, userID int64) (int, error)

	CreateReport(ctx context.Context, report store.Report) (int64, error)
	GetReport(ctx context.Context, id int64) (store.Report, error)
	ListOpenReports(ctx context.Context) ([]store.Report, error)
	ListReports(ctx context.Context, status catalog.ReportStatus, limit, offset int) ([]store.Report, int, error)
	CountReportsByStatus(ctx context.Context) (map[catalog.ReportStatus]int, error)
	ResolveReport(ctx context.Context, reportID, adminID int64, action catalog.ResolutionAction, note string, sideEffect func(tx *sql.Tx) error) error

	SiteStats(ctx context.Context) (store.SiteStats, error)
	OpenListingCounts(ctx context.Context) (map[catalog.ListingType]int64, error)
	AdminActivity(ctx context.Context, limit int) ([]store.ActivityItem, error)
}

type sessionStore interface {
	Create(ctx context.Context, userID int64) (string, session.Record, error)
	Get(ctx context.Context, token string) (session.Record, error)
	Destroy(ctx context.Context, token string) error
	PushFlash(ctx context.Context, token string, flash session.Flash) error
	PopFlashes(ctx context.Context, token string) ([]session.Flash, error)
	Ping(ctx context.Context) error
}

type notifier interface {
	IsConfigured() bool
	SendNewResponse(to, ownerName, responderName, listingTitle string, listingID int64) error
	SendResponseStatus(to, responderName, listingTitle, status string, responseID int64) error
	SendOrgDecision(to, contactName, orgName string, approved bool, orgID int64) error
}

type Service struct {
	store    dataStore
	sessions sessionStore
	mail     notifier
}

func NewService(store dataStore, sessions sessionStore, mail notifier) *Service {
	return &Service{store: store, sessions: sessions, mail: mail}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// --- Registration and login ---

type RegisterInput struct {
	DisplayName string
	Email       string
	Password    string
	County      string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(in.DisplayName)
	if len(name) < 2 || len(name) > 100 {
		fields["display_name"] = "Display name must be between 2 and 100 characters."
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !strings.Contains(email, "@") {
		fields["email"] = "Enter a valid email address."
	}
	if err := authpw.CheckPolicy(in.Password); err != nil {
		fields["password"] = "Password must be at least 8 characters."
	}
	county := in.County
	if county != "" && !catalog.ValidCounty(county) {
		county = ""
	}
	if len(fields) > 0 {
		return store.User{}, validationError(fields)
	}

	hash, err := authpw.Hash(in.Password)
	if err != nil {
		return store.User{}, err
	}

	id, err := s.store.CreateUser(ctx, store.User{
		DisplayName:  name,
		Email:        email,
		PasswordHash: hash,
		Role:         catalog.RoleIndividual,
		County:       county,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, validationError(map[string]string{"email": "That email is already registered."})
	}
	if err != nil {
		return store.User{}, err
	}
	return s.store.GetUserByID(ctx, id)
}

func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, validationError(map[string]string{"credentials": "Invalid email or password."})
	}
	if err != nil {
		return store.User{}, err
	}
	if err := authpw.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, authpw.ErrWrongPassword) {
			return store.User{}, validationError(map[string]string{"credentials": "Invalid email or password."})
		}
		return store.User{}, err
	}
	if !user.IsActive {
		return store.User{}, forbidden("This account has been deactivated.")
	}
	return user, nil
}

// SessionUser resolves the user behind a session record. Deactivated and
// vanished users come back as ErrNotFound so the caller can drop the
// session.
func (s *Service) SessionUser(ctx context.Context, userID int64) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, err
	}
	if !user.IsActive {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

// --- Profile ---

type ProfileInput struct {
	DisplayName string
	County      string
	Bio         string
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) error {
	fields := map[string]string{}
	name := strings.TrimSpace(in.DisplayName)
	if len(name) < 2 || len(name) > 100 {
		fields["display_name"] = "Display name must be between 2 and 100 characters."
	}
	county := in.County
	if county != "" && !catalog.ValidCounty(county) {
		county = ""
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return s.store.UpdateUserProfile(ctx, userID, name, county, strings.TrimSpace(in.Bio))
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := authpw.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, authpw.ErrWrongPassword) {
			return validationError(map[string]string{"current_password": "Current password is incorrect."})
		}
		return err
	}
	if err := authpw.CheckPolicy(next); err != nil {
		return validationError(map[string]string{"new_password": "Password must be at least 8 characters."})
	}
	hash, err := authpw.Hash(next)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, userID, hash)
}

// --- Read-side pages ---

// TypeCount is the number of open listings for one listing type.
type TypeCount struct {
	Type catalog.ListingType
	Open int64
}

type HomePage struct {
	Stats      store.SiteStats
	TypeCounts []TypeCount
	Recent     []store.Listing
	Causes     []store.Cause
}

func (s *Service) Home(ctx context.Context) (HomePage, error) {
	stats, err := s.store.SiteStats(ctx)
	if err != nil {
		return HomePage{}, err
	}
	byType, err := s.store.OpenListingCounts(ctx)
	if err != nil {
		return HomePage{}, err
	}
	// Every type renders even when nothing is open.
	counts := make([]TypeCount, 0, 3)
	for _, t := range catalog.ListingTypes() {
		counts = append(counts, TypeCount{Type: t, Open: byType[t]})
	}
	recent, err := s.store.RecentListings(ctx, 6)
	if err != nil {
		return HomePage{}, err
	}
	causes, err := s.store.ListActiveCauses(ctx)
	if err != nil {
		return HomePage{}, err
	}
	return HomePage{Stats: stats, TypeCounts: counts, Recent: recent, Causes: causes}, nil
}

type DashboardPage struct {
	Listings []store.Listing
	Threads  []store.Response
}

func (s *Service) Dashboard(ctx context.Context, userID int64) (DashboardPage, error) {
	listings, err := s.store.ListListingsByOwner(ctx, userID)
	if err != nil {
		return DashboardPage{}, err
	}
	// Most urgent first; the stable sort keeps the store's recency order
	// within each urgency band.
	sort.SliceStable(listings, func(i, j int) bool {
		return catalog.UrgencyRank(listings[i].Urgency) < catalog.UrgencyRank(listings[j].Urgency)
	})
	threads, err := s.store.ListResponsesForUser(ctx, userID)
	if err != nil {
		return DashboardPage{}, err
	}
	if len(threads) > 5 {
		threads = threads[:5]
	}
	return DashboardPage{Listings: listings, Threads: threads}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) int {
	count, err := s.store.UnreadMessageCount(ctx, userID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"unread count failed","error":%q}`, err.Error())
		return 0
	}
	return count
}

// warnUnknownEnum flags rows whose stored vocabulary value is no longer in
// the catalog. Reads tolerate them; writes never produce them.
func warnUnknownEnum(entity string, id int64, field, value string) {
	log.Printf(`{"level":"warn","msg":"unknown %s value","entity":"%s","id":%d,"value":%q}`, field, entity, id, value)
}
