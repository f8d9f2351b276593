// Package validation enforces the structural and conditional rules a report
// payload must satisfy before it is allowed anywhere near storage.
package validation

import (
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avitria/disaster-report-service/internal/config"
	"github.com/avitria/disaster-report-service/internal/models"
)

// Error reports every field that failed validation for a single payload.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// isoLayouts are the timestamp shapes accepted for created_at.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp in any accepted layout.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range isoLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Gate validates incoming payloads against the configured vocabularies and
// the conditional report schema.
type Gate struct {
	validate *validator.Validate
	cfg      *config.Config
}

// NewGate builds a validation gate bound to the configured vocabularies
func NewGate(cfg *config.Config) *Gate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report violations under json field names, matching the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := ParseTimestamp(fl.Field().String())
		return err == nil
	})

	g := &Gate{validate: v, cfg: cfg}
	v.RegisterStructValidation(g.reportRules, models.ReportRequest{})
	v.RegisterStructValidation(g.cardRules, models.CardRequest{})
	return g
}

// Card validates the creation payload for POST /cards.
func (g *Gate) Card(req *models.CardRequest) error {
	return g.toError(g.validate.Struct(req))
}

// Report validates a report submission payload for PUT /cards/{cardId}.
func (g *Gate) Report(req *models.ReportRequest) error {
	return g.toError(g.validate.Struct(req))
}

// ImagePatch validates the payload for PATCH /cards/{cardId}.
func (g *Gate) ImagePatch(req *models.ImagePatchRequest) error {
	return g.toError(g.validate.Struct(req))
}

// cardRules checks the creation payload against the language vocabulary.
func (g *Gate) cardRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.CardRequest)
	if req.Language != "" && !slices.Contains(g.cfg.Languages, req.Language) {
		sl.ReportError(req.Language, "language", "Language", "vocabulary", "")
	}
}

// reportRules checks the vocabularies and the flood_depth conditional:
// flood_depth is required, and bounded to [0,200], only when the
// disaster_type is "flood".
func (g *Gate) reportRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.ReportRequest)

	if req.DisasterType != "" && !slices.Contains(g.cfg.DisasterTypes, req.DisasterType) {
		sl.ReportError(req.DisasterType, "disaster_type", "DisasterType", "vocabulary", "")
	}
	if req.CardData.ReportType != "" && !slices.Contains(g.cfg.ReportTypes, req.CardData.ReportType) {
		sl.ReportError(req.CardData.ReportType, "report_type", "ReportType", "vocabulary", "")
	}
	if req.DisasterType == "flood" {
		depth := req.CardData.FloodDepth
		if depth == nil || *depth < 0 || *depth > 200 {
			sl.ReportError(req.CardData.FloodDepth, "flood_depth", "FloodDepth", "flood_depth_range", "")
		}
	}
}

// toError converts validator output into an Error listing every offending
// field, or passes through nil.
func (g *Gate) toError(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if !slices.Contains(fields, fe.Field()) {
			fields = append(fields, fe.Field())
		}
	}
	return &Error{Fields: fields}
}
