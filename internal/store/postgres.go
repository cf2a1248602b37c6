package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/rfp-intake/internal/models"
)

//go:embed schema.sql
var schema string

// Store is the Postgres implementation of the intake persistence contract.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool for url and checks that the server answers.
func Connect(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, errors.New("database url is empty")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(pool), nil
}

func (s *Store) Close() {
	s.db.Close()
}

// Migrate creates the tables the pipeline reads and writes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) VendorsByEmail(ctx context.Context, email string) ([]models.Vendor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, email, contact, rating
		FROM vendors
		WHERE lower(email) = lower($1)
		ORDER BY id`, email)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}

	return vendors, nil
}

func (s *Store) VendorByID(ctx context.Context, id int64) (*models.Vendor, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, email, contact, rating FROM vendors WHERE id = $1`, id)
	return scanVendor(row)
}

func (s *Store) RFPByID(ctx context.Context, id int64) (*models.RFP, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, description, budget, delivery_days, items, created_at
		FROM rfps
		WHERE id = $1`, id)
	return scanRFP(row)
}

func (s *Store) RFPBySubject(ctx context.Context, subject string) (*models.RFP, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, description, budget, delivery_days, items, created_at
		FROM rfps
		WHERE title <> ''
		  AND (strpos(lower(title), lower($1)) > 0 OR strpos(lower($1), lower(title)) > 0)
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, subject)
	return scanRFP(row)
}

// RecordResponse inserts the proposal and its response_received audit row in
// one transaction.
func (s *Store) RecordResponse(ctx context.Context, p *models.Proposal) (*models.Proposal, error) {
	payload, err := json.Marshal(nonNilMap(p.JSON))
	if err != nil {
		return nil, fmt.Errorf("marshal proposal json: %w", err)
	}
	items := p.LineItems
	if items == nil {
		items = []models.LineItem{}
	}
	lineItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}

	stored := *p
	stored.LineItems = items

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO proposals
				(rfp_id, vendor_id, proposal_json, total, line_items, terms, ai_score, ai_feedback, raw_text)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at`,
			p.RFPID, p.VendorID, payload, p.Total, lineItems, p.Terms, p.Score, p.Feedback, p.RawText,
		).Scan(&stored.ID, &stored.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert proposal: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO email_sends (rfp_id, vendor_id, sent_at, status)
			VALUES ($1, $2, now(), $3)`,
			p.RFPID, p.VendorID, models.AuditStatusResponseReceived)
		if err != nil {
			return fmt.Errorf("insert email send: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

func (s *Store) ProposalsByRFP(ctx context.Context, rfpID int64) ([]models.VendorProposal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.rfp_id, p.vendor_id, p.proposal_json, p.total, p.line_items, p.terms,
		       p.ai_score, p.ai_feedback, p.raw_text, p.created_at, v.name, v.email
		FROM proposals p
		JOIN vendors v ON v.id = p.vendor_id
		WHERE p.rfp_id = $1
		ORDER BY p.created_at, p.id`, rfpID)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	proposals := []models.VendorProposal{}
	for rows.Next() {
		var (
			vp        models.VendorProposal
			payload   []byte
			lineItems []byte
		)
		err := rows.Scan(
			&vp.ID, &vp.RFPID, &vp.VendorID, &payload, &vp.Total, &lineItems, &vp.Terms,
			&vp.Score, &vp.Feedback, &vp.RawText, &vp.CreatedAt, &vp.VendorName, &vp.VendorEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if err := unmarshalJSON(payload, &vp.JSON); err != nil {
			return nil, fmt.Errorf("decode proposal %d json: %w", vp.ID, err)
		}
		if err := unmarshalJSON(lineItems, &vp.LineItems); err != nil {
			return nil, fmt.Errorf("decode proposal %d line items: %w", vp.ID, err)
		}
		proposals = append(proposals, vp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}

	return proposals, nil
}

func scanVendor(row pgx.Row) (*models.Vendor, error) {
	var (
		v       models.Vendor
		contact *string
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Email, &contact, &v.Rating); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan vendor: %w", err)
	}
	if contact != nil {
		v.Contact = *contact
	}
	return &v, nil
}

func scanRFP(row pgx.Row) (*models.RFP, error) {
	var (
		r           models.RFP
		description *string
		items       []byte
	)
	err := row.Scan(&r.ID, &r.Title, &description, &r.Budget, &r.DeliveryDays, &items, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan rfp: %w", err)
	}
	if description != nil {
		r.Description = *description
	}
	if err := unmarshalJSON(items, &r.Items); err != nil {
		return nil, fmt.Errorf("decode rfp %d items: %w", r.ID, err)
	}
	if r.Items == nil {
		r.Items = []models.RFPItem{}
	}
	return &r, nil
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
