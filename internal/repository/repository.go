package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/avitria/disaster-report-service/internal/models"
)

// ErrDuplicateID is returned when a generated card id collides with an
// existing row. The caller retries with a fresh draw.
var ErrDuplicateID = errors.New("card id already exists")

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// Repository provides database operations for cards. Every call is bounded
// by the configured timeout; a timed-out write may or may not have applied
// and is reported as an error without rollback.
type Repository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// CreateCard inserts an unclaimed card keyed by its generated id
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (card_id, username, network, language, received)
		VALUES ($1, $2, $3, $4, FALSE)`
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	_, err := r.db.ExecContext(ctx, query, card.CardID, card.Username, card.Network, card.Language)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// CardByID retrieves a card by its id, returning (nil, nil) when no card
// exists rather than an error.
func (r *Repository) CardByID(ctx context.Context, cardID string) (*models.Card, error) {
	card := &models.Card{}
	query := `
		SELECT card_id, username, network, language, received,
		       disaster_type, report_type, flood_depth, text,
		       created_at, lat, lng, image_url
		FROM cards
		WHERE card_id = $1`
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var (
		disasterType sql.NullString
		reportType   sql.NullString
		floodDepth   sql.NullInt64
		text         sql.NullString
		createdAt    sql.NullTime
		lat, lng     sql.NullFloat64
		imageURL     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, cardID).
		Scan(&card.CardID, &card.Username, &card.Network, &card.Language, &card.Received,
			&disasterType, &reportType, &floodDepth, &text,
			&createdAt, &lat, &lng, &imageURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}

	card.DisasterType = disasterType.String
	card.ReportType = reportType.String
	card.Text = text.String
	if floodDepth.Valid {
		depth := int(floodDepth.Int64)
		card.FloodDepth = &depth
	}
	if createdAt.Valid {
		t := createdAt.Time
		card.CreatedAt = &t
	}
	if lat.Valid && lng.Valid {
		card.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	if imageURL.Valid {
		card.ImageURL = &imageURL.String
	}
	return card, nil
}

// SubmitReport writes the report fields and flips received in a single
// conditional update. It reports whether the write applied: false means the
// stored received flag was already true, so at most one of any number of
// concurrent submissions can ever succeed.
func (r *Repository) SubmitReport(ctx context.Context, cardID string, report *models.ReportRequest, createdAt time.Time) (bool, error) {
	query := `
		UPDATE cards
		SET received = TRUE,
		    disaster_type = $2,
		    report_type = $3,
		    flood_depth = $4,
		    text = $5,
		    created_at = $6,
		    lat = $7,
		    lng = $8,
		    image_url = COALESCE(NULLIF($9, ''), image_url)
		WHERE card_id = $1 AND received = FALSE`
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx, query,
		cardID, report.DisasterType, report.CardData.ReportType, report.CardData.FloodDepth,
		report.Text, createdAt, report.Location.Lat, report.Location.Lng, report.ImageURL)
	if err != nil {
		return false, fmt.Errorf("failed to submit report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to submit report: %w", err)
	}
	return n == 1, nil
}

// UpdateImageURL patches the card's image URL without any guard on the
// received flag; last write wins.
func (r *Repository) UpdateImageURL(ctx context.Context, cardID, imageURL string) error {
	query := `UPDATE cards SET image_url = $2 WHERE card_id = $1`
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx, query, cardID, imageURL)
	if err != nil {
		return fmt.Errorf("failed to update image url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update image url: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update image url for %q: %w", cardID, sql.ErrNoRows)
	}
	return nil
}
