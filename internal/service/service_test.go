package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avitria/disaster-report-service/internal/config"
	"github.com/avitria/disaster-report-service/internal/integrations/s3"
	"github.com/avitria/disaster-report-service/internal/models"
	"github.com/avitria/disaster-report-service/internal/observability"
	"github.com/avitria/disaster-report-service/internal/repository"
	"github.com/avitria/disaster-report-service/internal/validation"
)

// --- fakes ---

type stubStore struct {
	card *models.Card // returned by CardByID

	createErrs  []error // popped per CreateCard call; empty means success
	created     []*models.Card
	byIDCalls   int
	applied     bool
	submitCalls int
	imageURL    string
	updateCalls int
	updateErr   error
}

func (s *stubStore) CreateCard(_ context.Context, card *models.Card) error {
	s.created = append(s.created, card)
	if len(s.createErrs) == 0 {
		return nil
	}
	err := s.createErrs[0]
	s.createErrs = s.createErrs[1:]
	return err
}

func (s *stubStore) CardByID(_ context.Context, _ string) (*models.Card, error) {
	s.byIDCalls++
	return s.card, nil
}

func (s *stubStore) SubmitReport(_ context.Context, _ string, _ *models.ReportRequest, _ time.Time) (bool, error) {
	s.submitCalls++
	return s.applied, nil
}

func (s *stubStore) UpdateImageURL(_ context.Context, _, imageURL string) error {
	s.updateCalls++
	s.imageURL = imageURL
	return s.updateErr
}

type stubSigner struct {
	calls  int
	signed *s3.SignedUpload
	err    error
}

func (s *stubSigner) SignUpload(_ context.Context, cardID, _ string) (*s3.SignedUpload, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.signed != nil {
		return s.signed, nil
	}
	return &s3.SignedUpload{
		SignedRequest: "https://bucket.s3.amazonaws.com/originals/" + cardID + ".jpg?sig=abc",
		URL:           "https://s3.ap-southeast-1.amazonaws.com/bucket/originals/" + cardID + ".jpg",
		ImageURL:      "https://images.example.com/" + cardID + ".jpg",
	}, nil
}

type stubPurger struct {
	purges []string
}

func (p *stubPurger) PurgeGroup(group string) { p.purges = append(p.purges, group) }

func newTestService(store *stubStore, signer *stubSigner, purger *stubPurger) *Service {
	gate := validation.NewGate(&config.Config{
		Languages:     []string{"en", "id"},
		DisasterTypes: []string{"flood", "prep"},
		ReportTypes:   []string{"drain", "desilting", "flood"},
	})
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(store, signer, purger, gate, observability.NewMetricsForTesting(), log)
}

func intPtr(n int) *int { return &n }

func validReport() *models.ReportRequest {
	return &models.ReportRequest{
		DisasterType: "flood",
		CardData:     models.CardData{ReportType: "flood", FloodDepth: intPtr(30)},
		CreatedAt:    "2017-06-07T07:00:00+07:00",
		Location:     &models.Location{Lat: -6.2, Lng: 106.8},
	}
}

// --- CreateCard ---

func TestCreateCard(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	cardID, err := svc.CreateCard(context.Background(), &models.CardRequest{
		Username: "rina", Network: "sms", Language: "id",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cardID), 7)
	assert.LessOrEqual(t, len(cardID), 14)

	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.Equal(t, cardID, created.CardID)
	assert.Equal(t, "rina", created.Username)
	assert.False(t, created.Received, "a fresh card must be unclaimed")
}

func TestCreateCard_ValidationFailure(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	_, err := svc.CreateCard(context.Background(), &models.CardRequest{Network: "sms", Language: "id"})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Empty(t, store.created, "invalid payloads must never reach storage")
}

func TestCreateCard_RetriesOnDuplicateID(t *testing.T) {
	store := &stubStore{createErrs: []error{repository.ErrDuplicateID}}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	cardID, err := svc.CreateCard(context.Background(), &models.CardRequest{
		Username: "rina", Network: "sms", Language: "id",
	})
	require.NoError(t, err)
	require.Len(t, store.created, 2)
	assert.NotEqual(t, store.created[0].CardID, store.created[1].CardID, "retry must draw a fresh id")
	assert.Equal(t, cardID, store.created[1].CardID)
}

func TestCreateCard_GivesUpAfterBoundedRetries(t *testing.T) {
	store := &stubStore{createErrs: []error{
		repository.ErrDuplicateID, repository.ErrDuplicateID, repository.ErrDuplicateID,
	}}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	_, err := svc.CreateCard(context.Background(), &models.CardRequest{
		Username: "rina", Network: "sms", Language: "id",
	})
	require.Error(t, err)
	assert.Len(t, store.created, 3)
}

// --- SubmitReport ---

func TestSubmitReport(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234"}, applied: true}
	purger := &stubPurger{}
	svc := newTestService(store, &stubSigner{}, purger)

	err := svc.SubmitReport(context.Background(), "abc1234", validReport())
	require.NoError(t, err)
	assert.Equal(t, 1, store.submitCalls)
	assert.Equal(t, []string{CacheGroupCards}, purger.purges, "a successful submission must purge cached reads")
}

func TestSubmitReport_ValidationBeforeExistence(t *testing.T) {
	store := &stubStore{card: nil}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	req := validReport()
	req.CardData.FloodDepth = nil
	err := svc.SubmitReport(context.Background(), "unknown77", req)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr, "the payload shape is checked independently of card state")
	assert.Contains(t, verr.Fields, "flood_depth")
	assert.Zero(t, store.byIDCalls, "validation must run before the existence check")
}

func TestSubmitReport_UnknownCard(t *testing.T) {
	store := &stubStore{card: nil}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	err := svc.SubmitReport(context.Background(), "unknown77", validReport())
	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.Zero(t, store.submitCalls)
}

func TestSubmitReport_AlreadyReceived(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234", Received: true}}
	purger := &stubPurger{}
	svc := newTestService(store, &stubSigner{}, purger)

	err := svc.SubmitReport(context.Background(), "abc1234", validReport())
	assert.ErrorIs(t, err, ErrAlreadyReceived)
	assert.Zero(t, store.submitCalls, "stored fields must be left untouched")
	assert.Empty(t, purger.purges)
}

func TestSubmitReport_LosesConditionalWrite(t *testing.T) {
	// The read sees an unclaimed card, but a concurrent submission lands
	// first and the conditional write applies zero rows.
	store := &stubStore{card: &models.Card{CardID: "abc1234"}, applied: false}
	purger := &stubPurger{}
	svc := newTestService(store, &stubSigner{}, purger)

	err := svc.SubmitReport(context.Background(), "abc1234", validReport())
	assert.ErrorIs(t, err, ErrAlreadyReceived)
	assert.Empty(t, purger.purges)
}

// --- RequestUploadSlot ---

func TestRequestUploadSlot(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234"}}
	signer := &stubSigner{}
	purger := &stubPurger{}
	svc := newTestService(store, signer, purger)

	signed, err := svc.RequestUploadSlot(context.Background(), "abc1234", "image/jpeg")
	require.NoError(t, err)
	assert.NotEmpty(t, signed.SignedRequest)

	// The eventual image URL is recorded before the upload has happened.
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, signed.ImageURL, store.imageURL)
	assert.Equal(t, []string{CacheGroupCards}, purger.purges)
}

func TestRequestUploadSlot_UnknownCard(t *testing.T) {
	store := &stubStore{card: nil}
	signer := &stubSigner{}
	svc := newTestService(store, signer, &stubPurger{})

	_, err := svc.RequestUploadSlot(context.Background(), "unknown77", "image/jpeg")
	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.Zero(t, signer.calls, "no credential may be issued for a missing card")
}

func TestRequestUploadSlot_ReceivedCardStillAllowed(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234", Received: true}}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	_, err := svc.RequestUploadSlot(context.Background(), "abc1234", "image/jpeg")
	assert.NoError(t, err, "image state is unguarded; last write wins")
}

func TestRequestUploadSlot_SignerFailure(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234"}}
	signer := &stubSigner{err: fmt.Errorf("s3 unavailable")}
	purger := &stubPurger{}
	svc := newTestService(store, signer, purger)

	_, err := svc.RequestUploadSlot(context.Background(), "abc1234", "image/jpeg")
	require.Error(t, err)
	assert.Zero(t, store.updateCalls, "no speculative write without a credential")
	assert.Empty(t, purger.purges)
}

// --- PatchImage ---

func TestPatchImage(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234", Received: true}}
	purger := &stubPurger{}
	svc := newTestService(store, &stubSigner{}, purger)

	err := svc.PatchImage(context.Background(), "abc1234", &models.ImagePatchRequest{
		ImageURL: "https://cdn.example/abc1234.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/abc1234.jpg", store.imageURL)
	assert.Equal(t, []string{CacheGroupCards}, purger.purges)
}

func TestPatchImage_UnknownCard(t *testing.T) {
	store := &stubStore{card: nil}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	err := svc.PatchImage(context.Background(), "unknown77", &models.ImagePatchRequest{
		ImageURL: "https://cdn.example/x.jpg",
	})
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestPatchImage_RowVanishesBetweenReadAndWrite(t *testing.T) {
	store := &stubStore{
		card:      &models.Card{CardID: "abc1234"},
		updateErr: fmt.Errorf("failed to update image url: %w", sql.ErrNoRows),
	}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	err := svc.PatchImage(context.Background(), "abc1234", &models.ImagePatchRequest{
		ImageURL: "https://cdn.example/x.jpg",
	})
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestPatchImage_MissingURL(t *testing.T) {
	store := &stubStore{card: &models.Card{CardID: "abc1234"}}
	svc := newTestService(store, &stubSigner{}, &stubPurger{})

	err := svc.PatchImage(context.Background(), "abc1234", &models.ImagePatchRequest{})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "image_url")
	assert.Zero(t, store.updateCalls)
}
