package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"givinggrid/api/internal/catalog"
)

const listingColumns = `l.id, l.owner_id, l.org_id, l.type, l.title, l.description, l.category,
	l.quantity, l.county, l.city, l.urgency, l.logistics, l.contact_method, l.status,
	l.created_at, l.updated_at, l.fulfilled_at,
	u.display_name, o.name, COALESCE(o.is_verified, FALSE),
	(SELECT COUNT(*) FROM responses r WHERE r.listing_id = l.id)`

const listingFrom = ` FROM listings l
	JOIN users u ON u.id = l.owner_id
	LEFT JOIN organizations o ON o.id = l.org_id`

func scanListing(row interface{ Scan(...any) error }) (Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.OwnerID, &l.OrgID, &l.Type, &l.Title, &l.Description, &l.Category,
		&l.Quantity, &l.County, &l.City, &l.Urgency, &l.Logistics, &l.ContactMethod, &l.Status,
		&l.CreatedAt, &l.UpdatedAt, &l.FulfilledAt,
		&l.OwnerName, &l.OrgName, &l.OrgVerified,
		&l.ResponseCount)
	return l, err
}

func (s *PostgresStore) CreateListing(ctx context.Context, listing Listing, causeIDs []int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create listing tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO listings (owner_id, org_id, type, title, description, category, quantity,
			county, city, urgency, logistics, contact_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, listing.OwnerID, listing.OrgID, listing.Type, listing.Title, listing.Description,
		listing.Category, listing.Quantity, listing.County, listing.City,
		listing.Urgency, listing.Logistics, listing.ContactMethod, catalog.ListingOpen).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert listing: %w", err)
	}

	if err := replaceCauseLinks(ctx, tx, id, causeIDs); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create listing tx: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateListing(ctx context.Context, listing Listing, causeIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update listing tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET title=$2, description=$3, category=$4, quantity=$5, county=$6, city=$7,
			urgency=$8, logistics=$9, contact_method=$10, updated_at=NOW()
		WHERE id=$1
	`, listing.ID, listing.Title, listing.Description, listing.Category, listing.Quantity,
		listing.County, listing.City, listing.Urgency, listing.Logistics, listing.ContactMethod)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if err := checkAffected(res, "listing"); err != nil {
		return err
	}

	if err := replaceCauseLinks(ctx, tx, listing.ID, causeIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update listing tx: %w", err)
	}
	return nil
}

func replaceCauseLinks(ctx context.Context, tx *sql.Tx, listingID int64, causeIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_causes WHERE listing_id=$1`, listingID); err != nil {
		return fmt.Errorf("clear cause links: %w", err)
	}
	for _, causeID := range causeIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_causes (listing_id, cause_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, listingID, causeID); err != nil {
			return fmt.Errorf("link cause %d: %w", causeID, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id int64) (Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+listingFrom+` WHERE l.id = $1`, id)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("lookup listing: %w", err)
	}
	if err := s.loadListingCauses(ctx, &listing); err != nil {
		return Listing{}, err
	}
	return listing, nil
}

func (s *PostgresStore) loadListingCauses(ctx context.Context, listing *Listing) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.slug, c.name, c.description, c.is_active
		FROM causes c
		JOIN listing_causes lc ON lc.cause_id = c.id
		WHERE lc.listing_id = $1
		ORDER BY c.name
	`, listing.ID)
	if err != nil {
		return fmt.Errorf("load listing causes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Cause
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.IsActive); err != nil {
			return fmt.Errorf("scan cause: %w", err)
		}
		listing.Causes = append(listing.Causes, c)
	}
	return rows.Err()
}

// SearchListings runs the browse query: COUNT with the filter predicate
// first, then the page ordered by urgency rank and recency.
func (s *PostgresStore) SearchListings(ctx context.Context, filter ListingFilter) ([]Listing, int, error) {
	where, args := buildListingPredicate(filter)

	var total int
	countQuery := `SELECT COUNT(DISTINCT l.id)` + listingFrom + ` WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	pageQuery := fmt.Sprintf(`SELECT %s%s WHERE %s %s LIMIT $%d OFFSET $%d`,
		listingColumns, listingFrom, where, listingOrderBy, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, total, rows.Err()
}

// ListListingsByOwner returns all of a user's listings for the dashboard,
// newest first, regardless of status.
func (s *PostgresStore) ListListingsByOwner(ctx context.Context, ownerID int64) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+listingFrom+` WHERE l.owner_id = $1 ORDER BY l.created_at DESC, l.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// RecentListings backs the homepage: newest open listings from active
// owners.
func (s *PostgresStore) RecentListings(ctx context.Context, limit int) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+listingFrom+` WHERE l.status = 'open' AND u.is_active ORDER BY l.created_at DESC, l.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// UpdateListingStatus sets the status. Moving to fulfilled stamps
// fulfilled_at and reopening clears it; other transitions keep the
// timestamp, so fulfilled -> closed still records when the need was met.
const updateListingStatusSQL = `
	UPDATE listings
	SET status=$2,
		fulfilled_at=CASE
			WHEN $2 = 'fulfilled' THEN NOW()
			WHEN $2 = 'open' THEN NULL
			ELSE fulfilled_at
		END,
		updated_at=NOW()
	WHERE id=$1
`

func (s *PostgresStore) UpdateListingStatus(ctx context.Context, id int64, status catalog.ListingStatus) error {
	res, err := s.db.ExecContext(ctx, updateListingStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	return checkAffected(res, "listing")
}

// HardDeleteListing removes cause links, messages, responses, then the
// listing row, in one transaction. Reports keep their target id.
func (s *PostgresStore) HardDeleteListing(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete listing tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_causes WHERE listing_id=$1`, id); err != nil {
		return fmt.Errorf("delete cause links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages WHERE response_id IN (SELECT id FROM responses WHERE listing_id=$1)
	`, id); err != nil {
		return fmt.Errorf("delete listing messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM responses WHERE listing_id=$1`, id); err != nil {
		return fmt.Errorf("delete listing responses: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if err := checkAffected(res, "listing"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete listing tx: %w", err)
	}
	return nil
}
