package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"givinggrid/api/internal/catalog"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert trips a unique constraint.
var ErrDuplicate = errors.New("already exists")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users ---

const userColumns = `u.id, u.display_name, u.email, u.password_hash, u.role,
	u.organization_id, u.county, u.bio, u.is_active, u.created_at, u.updated_at,
	o.name, COALESCE(o.is_verified, FALSE)`

const userFrom = ` FROM users u LEFT JOIN organizations o ON o.id = u.organization_id`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role,
		&u.OrganizationID, &u.County, &u.Bio, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		&u.OrganizationName, &u.OrgVerified)
	return u, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (display_name, email, password_hash, role, county, bio)
		VALUES ($1, LOWER($2), $3, $4, $5, $6)
		RETURNING id
	`, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.County, user.Bio).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+userFrom+` WHERE u.email = LOWER($1)`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id int64, displayName, county, bio string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name=$2, county=$3, bio=$4, updated_at=NOW()
		WHERE id=$1
	`, id, displayName, county, bio)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return checkAffected(res, "user")
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return checkAffected(res, "user")
}

func checkAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}

// --- Organizations ---

func (s *PostgresStore) CreateOrganization(ctx context.Context, org Organization, creatorID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create org tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, mission, website, contact_email, county_served, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, org.Name, org.Mission, org.Website, org.ContactEmail, org.CountyServed, creatorID).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert organization: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET role=$2, organization_id=$3, updated_at=NOW() WHERE id=$1
	`, creatorID, catalog.RoleOrgMember, id); err != nil {
		return 0, fmt.Errorf("attach creator to organization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create org tx: %w", err)
	}
	return id, nil
}

const orgColumns = `o.id, o.name, o.mission, o.website, o.contact_email, o.county_served,
	o.is_verified, o.verified_at, o.verified_by, o.created_by, o.created_at,
	(SELECT COUNT(*) FROM users m WHERE m.organization_id = o.id),
	(SELECT COUNT(*) FROM listings l WHERE l.org_id = o.id AND l.status = 'open' AND l.type = 'need'),
	(SELECT COUNT(*) FROM listings l WHERE l.org_id = o.id AND l.status = 'open' AND l.type = 'offer'),
	(SELECT COUNT(*) FROM listings l WHERE l.org_id = o.id AND l.status = 'open' AND l.type = 'volunteer')`

func scanOrganization(row interface{ Scan(...any) error }) (Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.Mission, &o.Website, &o.ContactEmail, &o.CountyServed,
		&o.IsVerified, &o.VerifiedAt, &o.VerifiedByID, &o.CreatedByID, &o.CreatedAt,
		&o.MemberCount, &o.OpenNeeds, &o.OpenOffers, &o.OpenVolunteer)
	return o, err
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE o.id = $1`, id)
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	if err != nil {
		return Organization{}, fmt.Errorf("lookup organization: %w", err)
	}
	return org, nil
}

// ListVerifiedOrganizations backs the public directory: verified only,
// optional county and name filters, alphabetical.
func (s *PostgresStore) ListVerifiedOrganizations(ctx context.Context, county, query string, limit, offset int) ([]Organization, int, error) {
	conditions := `o.is_verified`
	args := []any{}
	if catalog.ValidCounty(county) {
		args = append(args, county)
		conditions += fmt.Sprintf(" AND o.county_served = $%d", len(args))
	}
	if query != "" {
		args = append(args, "%"+query+"%")
		conditions += fmt.Sprintf(" AND (o.name ILIKE $%d OR o.mission ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations o WHERE `+conditions, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}

	args = append(args, limit, offset)
	query2 := fmt.Sprintf(`SELECT %s FROM organizations o WHERE %s ORDER BY o.name LIMIT $%d OFFSET $%d`,
		orgColumns, conditions, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query2, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, total, rows.Err()
}

// ListPendingOrganizations returns unverified orgs oldest-first for the
// admin verification queue.
func (s *PostgresStore) ListPendingOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE NOT o.is_verified ORDER BY o.created_at, o.id`)
	if err != nil {
		return nil, fmt.Errorf("list pending organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// VerifyOrganization marks an org verified. Returns ErrDuplicate when it
// already was, so callers can show the idempotent-guard notice.
func (s *PostgresStore) VerifyOrganization(ctx context.Context, id, adminID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET is_verified=TRUE, verified_at=NOW(), verified_by=$2
		WHERE id=$1 AND NOT is_verified
	`, id, adminID)
	if err != nil {
		return fmt.Errorf("verify organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM organizations WHERE id=$1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check organization: %w", err)
		}
		if exists {
			return ErrDuplicate
		}
		return ErrNotFound
	}
	return nil
}

// RejectOrganization detaches every member back to an individual account
// and deletes the org row, atomically. Verified orgs are not rejectable.
func (s *PostgresStore) RejectOrganization(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reject org tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET role=$2, organization_id=NULL, updated_at=NOW()
		WHERE organization_id=$1
	`, id, catalog.RoleIndividual); err != nil {
		return fmt.Errorf("detach organization members: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id=$1 AND NOT is_verified`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if err := checkAffected(res, "organization"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reject org tx: %w", err)
	}
	return nil
}

// --- Causes ---

func (s *PostgresStore) ListActiveCauses(ctx context.Context) ([]Cause, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.slug, c.name, c.description, c.is_active,
			(SELECT COUNT(*) FROM listing_causes lc
				JOIN listings l ON l.id = lc.listing_id
				WHERE lc.cause_id = c.id AND l.status = 'open')
		FROM causes c
		WHERE c.is_active
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list causes: %w", err)
	}
	defer rows.Close()

	var causes []Cause
	for rows.Next() {
		var c Cause
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.IsActive, &c.OpenListings); err != nil {
			return nil, fmt.Errorf("scan cause: %w", err)
		}
		causes = append(causes, c)
	}
	return causes, rows.Err()
}

func (s *PostgresStore) GetCauseBySlug(ctx context.Context, slug string) (Cause, error) {
	var c Cause
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, is_active
		FROM causes WHERE slug=$1 AND is_active
	`, slug).Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Cause{}, ErrNotFound
	}
	if err != nil {
		return Cause{}, fmt.Errorf("lookup cause: %w", err)
	}
	return c, nil
}

// --- Stats ---

func (s *PostgresStore) SiteStats(ctx context.Context) (SiteStats, error) {
	var st SiteStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_active),
			(SELECT COUNT(*) FROM organizations),
			(SELECT COUNT(*) FROM organizations WHERE is_verified),
			(SELECT COUNT(*) FROM listings),
			(SELECT COUNT(*) FROM listings WHERE status='open'),
			(SELECT COUNT(*) FROM listings WHERE status='fulfilled'),
			(SELECT COUNT(*) FROM responses),
			(SELECT COUNT(*) FROM reports WHERE status='pending'),
			(SELECT COUNT(*) FROM organizations WHERE NOT is_verified),
			(SELECT COUNT(*) FROM listings WHERE status='fulfilled' AND fulfilled_at >= $1),
			(SELECT COUNT(*) FROM users WHERE created_at >= $1)
	`, time.Now().AddDate(0, 0, -7)).Scan(
		&st.Users, &st.ActiveUsers, &st.Organizations, &st.VerifiedOrgs,
		&st.Listings, &st.OpenListings, &st.Fulfilled, &st.Responses,
		&st.PendingReports, &st.PendingVerifications,
		&st.FulfilledThisWeek, &st.NewUsersThisWeek,
	)
	if err != nil {
		return SiteStats{}, fmt.Errorf("site stats: %w", err)
	}
	return st, nil
}

// OpenListingCounts returns the number of open listings per type. Types
// with no open listings are absent from the map.
func (s *PostgresStore) OpenListingCounts(ctx context.Context) (map[catalog.ListingType]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM listings WHERE status='open' GROUP BY type
	`)
	if err != nil {
		return nil, fmt.Errorf("open listing counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[catalog.ListingType]int64)
	for rows.Next() {
		var t catalog.ListingType
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan listing count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// AdminActivity merges recent listings and registrations into one feed,
// newest first.
func (s *PostgresStore) AdminActivity(ctx context.Context, limit int) ([]ActivityItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, summary, created_at FROM (
			SELECT 'listing' AS kind,
				u.display_name || ' posted ' || l.title AS summary,
				l.created_at
			FROM listings l JOIN users u ON u.id = l.owner_id
			UNION ALL
			SELECT 'user', display_name || ' joined', created_at FROM users
		) activity
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("admin activity: %w", err)
	}
	defer rows.Close()

	var items []ActivityItem
	for rows.Next() {
		var item ActivityItem
		if err := rows.Scan(&item.Kind, &item.Summary, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
