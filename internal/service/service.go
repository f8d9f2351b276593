package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avitria/disaster-report-service/internal/integrations/s3"
	"github.com/avitria/disaster-report-service/internal/models"
	"github.com/avitria/disaster-report-service/internal/observability"
	"github.com/avitria/disaster-report-service/internal/repository"
	"github.com/avitria/disaster-report-service/internal/utils"
	"github.com/avitria/disaster-report-service/internal/validation"
)

// Typed failures the handler layer maps onto HTTP status codes.
var (
	ErrCardNotFound    = errors.New("card not found")
	ErrAlreadyReceived = errors.New("report already received")
)

// CacheGroupCards tags every cached /cards read response.
const CacheGroupCards = "cards"

// maxIDAttempts bounds retries when a generated id collides with an
// existing row.
const maxIDAttempts = 3

// CardStore is the persistence surface the service depends on.
type CardStore interface {
	CreateCard(ctx context.Context, card *models.Card) error
	CardByID(ctx context.Context, cardID string) (*models.Card, error)
	SubmitReport(ctx context.Context, cardID string, report *models.ReportRequest, createdAt time.Time) (bool, error)
	UpdateImageURL(ctx context.Context, cardID, imageURL string) error
}

// UploadSigner issues pre-signed upload credentials for card images.
type UploadSigner interface {
	SignUpload(ctx context.Context, cardID, fileType string) (*s3.SignedUpload, error)
}

// Invalidator purges cached read responses after a mutation.
type Invalidator interface {
	PurgeGroup(group string)
}

// Service handles the card lifecycle business logic
type Service struct {
	store   CardStore
	signer  UploadSigner
	cache   Invalidator
	gate    *validation.Gate
	metrics *observability.Metrics
	log     *logrus.Logger
}

// NewService initializes a new service
func NewService(store CardStore, signer UploadSigner, cache Invalidator, gate *validation.Gate, metrics *observability.Metrics, log *logrus.Logger) *Service {
	return &Service{store: store, signer: signer, cache: cache, gate: gate, metrics: metrics, log: log}
}

// CreateCard registers an unclaimed card and returns its generated id.
// An id collision surfaces as a storage uniqueness violation and is retried
// with a fresh draw, bounded by maxIDAttempts.
func (s *Service) CreateCard(ctx context.Context, req *models.CardRequest) (string, error) {
	if err := s.gate.Card(req); err != nil {
		return "", err
	}
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		cardID, err := utils.GenerateCardID()
		if err != nil {
			return "", fmt.Errorf("failed to generate card id: %w", err)
		}
		card := &models.Card{
			CardID:   cardID,
			Username: req.Username,
			Network:  req.Network,
			Language: req.Language,
		}
		err = s.store.CreateCard(ctx, card)
		if errors.Is(err, repository.ErrDuplicateID) {
			s.log.Warnf("Card id collision on %q, retrying", cardID)
			continue
		}
		if err != nil {
			return "", err
		}
		s.metrics.CardsCreated.Inc()
		s.log.Infof("Card created: %s", cardID)
		return cardID, nil
	}
	return "", fmt.Errorf("failed to create card after %d id attempts", maxIDAttempts)
}

// GetCard returns the card, or nil when the id is unknown.
func (s *Service) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	return s.store.CardByID(ctx, cardID)
}

// SubmitReport validates and commits a report onto an unclaimed card. The
// received flag flips via a single conditional write, so when two
// submissions race, exactly one applies and the other gets
// ErrAlreadyReceived. Validation runs before the existence check.
func (s *Service) SubmitReport(ctx context.Context, cardID string, req *models.ReportRequest) error {
	if err := s.gate.Report(req); err != nil {
		return err
	}
	createdAt, err := validation.ParseTimestamp(req.CreatedAt)
	if err != nil {
		return &validation.Error{Fields: []string{"created_at"}}
	}

	card, err := s.store.CardByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return ErrCardNotFound
	}
	if card.Received {
		s.metrics.ReportConflicts.Inc()
		return ErrAlreadyReceived
	}

	applied, err := s.store.SubmitReport(ctx, cardID, req, createdAt)
	if err != nil {
		return err
	}
	if !applied {
		// A concurrent submission won the conditional write after our read.
		s.metrics.ReportConflicts.Inc()
		return ErrAlreadyReceived
	}

	s.cache.PurgeGroup(CacheGroupCards)
	s.metrics.ReportsSubmitted.Inc()
	s.log.Infof("Report received for card %s: %s/%s", cardID, req.DisasterType, req.CardData.ReportType)
	return nil
}

// RequestUploadSlot issues a pre-signed upload credential and records the
// eventual image URL on the card before the upload has happened. Readers may
// briefly see a URL that does not resolve yet; the client's PATCH settles
// it. Cards that already received a report can still request a slot; the
// image URL is unguarded and last write wins.
func (s *Service) RequestUploadSlot(ctx context.Context, cardID, fileType string) (*s3.SignedUpload, error) {
	card, err := s.store.CardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}

	signed, err := s.signer.SignUpload(ctx, cardID, fileType)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateImageURL(ctx, cardID, signed.ImageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	s.cache.PurgeGroup(CacheGroupCards)
	s.metrics.UploadSlots.Inc()
	return signed, nil
}

// PatchImage stores the confirmed image URL after the client has verified
// its upload; last write wins.
func (s *Service) PatchImage(ctx context.Context, cardID string, req *models.ImagePatchRequest) error {
	if err := s.gate.ImagePatch(req); err != nil {
		return err
	}
	card, err := s.store.CardByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return ErrCardNotFound
	}
	if err := s.store.UpdateImageURL(ctx, cardID, req.ImageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCardNotFound
		}
		return err
	}

	s.cache.PurgeGroup(CacheGroupCards)
	s.metrics.ImagePatches.Inc()
	s.log.Infof("Image url updated for card %s", cardID)
	return nil
}
