package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/avitria/disaster-report-service/internal/cache"
	"github.com/avitria/disaster-report-service/internal/models"
	"github.com/avitria/disaster-report-service/internal/service"
	"github.com/avitria/disaster-report-service/internal/validation"
)

// apiError is the single failure envelope every endpoint uses, including
// object-store failures.
type apiError struct {
	StatusCode int      `json:"statusCode"`
	CardID     string   `json:"cardId,omitempty"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

// Handler maps the card lifecycle HTTP surface onto the service layer
type Handler struct {
	svc   *service.Service
	cache *cache.ResponseCache
	log   *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, respCache *cache.ResponseCache, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, cache: respCache, log: log}
}

// Routes registers the /cards endpoints on the router. GET and HEAD reads
// run behind the response cache; every mutation purges it via the service.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/cards", h.CreateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}", h.cache.Middleware(service.CacheGroupCards, h.CardExists)).Methods(http.MethodHead)
	r.HandleFunc("/cards/{cardId}", h.cache.Middleware(service.CacheGroupCards, h.GetCard)).Methods(http.MethodGet)
	r.HandleFunc("/cards/{cardId}", h.SubmitReport).Methods(http.MethodPut)
	r.HandleFunc("/cards/{cardId}/images", h.RequestUploadSlot).Methods(http.MethodGet)
	r.HandleFunc("/cards/{cardId}", h.PatchImage).Methods(http.MethodPatch)
}

// CreateCard handles POST /cards
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req models.CardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{StatusCode: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	cardID, err := h.svc.CreateCard(r.Context(), &req)
	if err != nil {
		h.writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cardId": cardID, "created": true})
}

// CardExists handles HEAD /cards/{cardId}
func (h *Handler) CardExists(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.cardID(w, r)
	if !ok {
		return
	}
	card, err := h.svc.GetCard(r.Context(), cardID)
	if err != nil {
		h.log.Errorf("Failed to check card %s: %v", cardID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if card == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetCard handles GET /cards/{cardId}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.cardID(w, r)
	if !ok {
		return
	}
	card, err := h.svc.GetCard(r.Context(), cardID)
	if err != nil {
		h.writeError(w, cardID, err)
		return
	}
	if card == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "found": false, "result": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statusCode": 200, "result": card})
}

// SubmitReport handles PUT /cards/{cardId}
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.cardID(w, r)
	if !ok {
		return
	}
	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{StatusCode: http.StatusBadRequest, CardID: cardID, Message: "invalid request body"})
		return
	}
	if err := h.svc.SubmitReport(r.Context(), cardID, &req); err != nil {
		h.writeError(w, cardID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statusCode": 200, "cardId": cardID, "created": true})
}

// RequestUploadSlot handles GET /cards/{cardId}/images
func (h *Handler) RequestUploadSlot(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.cardID(w, r)
	if !ok {
		return
	}
	fileType := r.URL.Query().Get("file_type")
	signed, err := h.svc.RequestUploadSlot(r.Context(), cardID, fileType)
	if err != nil {
		h.writeError(w, cardID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signedRequest": signed.SignedRequest, "url": signed.URL})
}

// PatchImage handles PATCH /cards/{cardId}
func (h *Handler) PatchImage(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.cardID(w, r)
	if !ok {
		return
	}
	var req models.ImagePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{StatusCode: http.StatusBadRequest, CardID: cardID, Message: "invalid request body"})
		return
	}
	if err := h.svc.PatchImage(r.Context(), cardID, &req); err != nil {
		h.writeError(w, cardID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statusCode": 200, "cardId": cardID, "updated": true})
}

// cardID extracts and checks the path id. Ids are 7 to 14 characters; out
// of range is a validation failure, not a lookup miss.
func (h *Handler) cardID(w http.ResponseWriter, r *http.Request) (string, bool) {
	cardID := mux.Vars(r)["cardId"]
	if len(cardID) < 7 || len(cardID) > 14 {
		writeJSON(w, http.StatusBadRequest, apiError{
			StatusCode: http.StatusBadRequest,
			CardID:     cardID,
			Message:    "cardId must be 7 to 14 characters",
			Fields:     []string{"cardId"},
		})
		return "", false
	}
	return cardID, true
}

// writeError maps service failures onto the response envelope. Unexpected
// errors are logged with full context and surfaced as a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, cardID string, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, apiError{
			StatusCode: http.StatusBadRequest,
			CardID:     cardID,
			Message:    "validation failed",
			Fields:     verr.Fields,
		})
	case errors.Is(err, service.ErrCardNotFound):
		writeJSON(w, http.StatusNotFound, apiError{
			StatusCode: http.StatusNotFound,
			CardID:     cardID,
			Message:    fmt.Sprintf("No card exists with id '%s'", cardID),
		})
	case errors.Is(err, service.ErrAlreadyReceived):
		writeJSON(w, http.StatusConflict, apiError{
			StatusCode: http.StatusConflict,
			CardID:     cardID,
			Message:    fmt.Sprintf("Report already received for card '%s'", cardID),
		})
	default:
		h.log.Errorf("Request failed for card %q: %v", cardID, err)
		writeJSON(w, http.StatusInternalServerError, apiError{
			StatusCode: http.StatusInternalServerError,
			CardID:     cardID,
			Message:    "Internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
