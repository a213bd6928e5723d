package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"givinggrid/api/internal/catalog"
)

const responseColumns = `r.id, r.listing_id, r.responder_id, r.status, r.created_at, r.updated_at,
	ru.display_name, l.title, l.type, l.status, l.owner_id, ou.display_name,
	(SELECT COUNT(*) FROM messages m WHERE m.response_id = r.id),
	(SELECT MAX(m.created_at) FROM messages m WHERE m.response_id = r.id)`

const responseFrom = ` FROM responses r
	JOIN users ru ON ru.id = r.responder_id
	JOIN listings l ON l.id = r.listing_id
	JOIN users ou ON ou.id = l.owner_id`

func scanResponse(row interface{ Scan(...any) error }) (Response, error) {
	var r Response
	err := row.Scan(&r.ID, &r.ListingID, &r.ResponderID, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		&r.ResponderName, &r.ListingTitle, &r.ListingType, &r.ListingStatus, &r.ListingOwnerID, &r.OwnerName,
		&r.MessageCount, &r.LastMessageAt)
	return r, err
}

// CreateResponseWithMessage inserts the response (pending) and its first
// message in one transaction. A concurrent duplicate loses to the
// (listing_id, responder_id) unique constraint and comes back as
// ErrDuplicate.
func (s *PostgresStore) CreateResponseWithMessage(ctx context.Context, listingID, responderID int64, body string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create response tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO responses (listing_id, responder_id, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, listingID, responderID, catalog.ResponsePending).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert response: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (response_id, sender_id, body) VALUES ($1, $2, $3)
	`, id, responderID, body); err != nil {
		return 0, fmt.Errorf("insert first message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create response tx: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetResponse(ctx context.Context, id int64) (Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+responseFrom+` WHERE r.id = $1`, id)
	resp, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, fmt.Errorf("lookup response: %w", err)
	}
	return resp, nil
}

// GetResponseForListingAndUser finds a user's existing response to a
// listing, if any.
func (s *PostgresStore) GetResponseForListingAndUser(ctx context.Context, listingID, responderID int64) (Response, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+responseFrom+` WHERE r.listing_id = $1 AND r.responder_id = $2`,
		listingID, responderID)
	resp, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, ErrNotFound
	}
	if err != nil {
		return Response{}, fmt.Errorf("lookup response for listing: %w", err)
	}
	return resp, nil
}

// ListResponsesForUser returns every thread the user participates in,
// either side, most recent activity first. Unread counts only messages
// sent by the other party.
func (s *PostgresStore) ListResponsesForUser(ctx context.Context, userID int64) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+responseColumns+`,
			(SELECT COUNT(*) FROM messages m
				WHERE m.response_id = r.id AND NOT m.is_read AND m.sender_id <> $1)
		`+responseFrom+`
		WHERE r.responder_id = $1 OR l.owner_id = $1
		ORDER BY r.updated_at DESC, r.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		var r Response
		err := rows.Scan(&r.ID, &r.ListingID, &r.ResponderID, &r.Status, &r.CreatedAt, &r.UpdatedAt,
			&r.ResponderName, &r.ListingTitle, &r.ListingType, &r.ListingStatus, &r.ListingOwnerID, &r.OwnerName,
			&r.MessageCount, &r.LastMessageAt, &r.UnreadCount)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// ListResponsesForListing returns threads on a listing for its owner,
// oldest first.
func (s *PostgresStore) ListResponsesForListing(ctx context.Context, listingID int64) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseColumns+responseFrom+` WHERE r.listing_id = $1 ORDER BY r.created_at, r.id`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list responses for listing: %w", err)
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func (s *PostgresStore) UpdateResponseStatus(ctx context.Context, id int64, status catalog.ResponseStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE responses SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update response status: %w", err)
	}
	return checkAffected(res, "response")
}

func (s *PostgresStore) ListMessages(ctx context.Context, responseID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.response_id, m.sender_id, m.body, m.is_read, m.created_at, u.display_name
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.response_id = $1
		ORDER BY m.created_at, m.id
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ResponseID, &m.SenderID, &m.Body, &m.IsRead, &m.CreatedAt, &m.SenderName); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AddMessage appends to a thread and bumps the response's updated_at in
// the same transaction so thread lists sort by activity.
func (s *PostgresStore) AddMessage(ctx context.Context, responseID, senderID int64, body string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add message tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (response_id, sender_id, body) VALUES ($1, $2, $3)
		RETURNING id
	`, responseID, senderID, body).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE responses SET updated_at=NOW() WHERE id=$1`, responseID); err != nil {
		return 0, fmt.Errorf("bump response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add message tx: %w", err)
	}
	return id, nil
}

// MarkThreadRead flips is_read on messages the reader did not send.
func (s *PostgresStore) MarkThreadRead(ctx context.Context, responseID, readerID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read=TRUE
		WHERE response_id=$1 AND sender_id <> $2 AND NOT is_read
	`, responseID, readerID)
	if err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

// UnreadMessageCount counts unread messages addressed to the user across
// all their threads.
func (s *PostgresStore) UnreadMessageCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN responses r ON r.id = m.response_id
		JOIN listings l ON l.id = r.listing_id
		WHERE NOT m.is_read AND m.sender_id <> $1
			AND (r.responder_id = $1 OR l.owner_id = $1)
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
