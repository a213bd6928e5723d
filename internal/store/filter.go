package store

import (
	"fmt"
	"strings"

	"givinggrid/api/internal/catalog"
)

// ListingFilter describes the browse query. Zero values mean "no filter".
type ListingFilter struct {
	Type      catalog.ListingType
	Category  string
	County    string
	Urgency   catalog.Urgency
	Query     string
	CauseSlug string
	OrgID     int64
	Limit     int
	Offset    int
}

// listingOrderBy ranks urgency (critical first) before recency. The id
// tiebreak keeps pagination stable for rows created in the same instant.
const listingOrderBy = `ORDER BY CASE l.urgency
		WHEN 'critical' THEN 0
		WHEN 'high' THEN 1
		WHEN 'medium' THEN 2
		WHEN 'low' THEN 3
		ELSE 4
	END, l.created_at DESC, l.id DESC`

// buildListingPredicate turns a filter into a WHERE fragment and the
// matching args. Browse only ever shows open listings from active owners;
// unrecognized filter values are dropped rather than matched literally.
func buildListingPredicate(f ListingFilter) (where string, args []any) {
	conditions := []string{"l.status = $1", "u.is_active"}
	args = []any{string(catalog.ListingOpen)}

	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }

	if catalog.ValidListingType(string(f.Type)) {
		conditions = append(conditions, "l.type = "+next())
		args = append(args, string(f.Type))
	}
	if catalog.ValidCategory(f.Category) {
		conditions = append(conditions, "l.category = "+next())
		args = append(args, f.Category)
	}
	if catalog.ValidCounty(f.County) {
		conditions = append(conditions, "l.county = "+next())
		args = append(args, f.County)
	}
	if catalog.ValidUrgency(string(f.Urgency)) {
		conditions = append(conditions, "l.urgency = "+next())
		args = append(args, string(f.Urgency))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := next()
		conditions = append(conditions, "(l.title ILIKE "+p+" OR l.description ILIKE "+p+")")
		args = append(args, "%"+q+"%")
	}
	if f.OrgID > 0 {
		conditions = append(conditions, "l.org_id = "+next())
		args = append(args, f.OrgID)
	}
	if f.CauseSlug != "" {
		conditions = append(conditions, `EXISTS (SELECT 1 FROM listing_causes lc
			JOIN causes c ON c.id = lc.cause_id
			WHERE lc.listing_id = l.id AND c.slug = `+next()+` AND c.is_active)`)
		args = append(args, f.CauseSlug)
	}

	return strings.Join(conditions, " AND "), args
}
