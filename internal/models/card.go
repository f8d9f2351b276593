package models

import "time"

// Location is a WGS-84 coordinate pair attached to a report
type Location struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// Card represents a crowdsourced disaster-report card. A card starts
// unclaimed, carrying only its id and submitter details; the report fields
// are written once when a report is received.
type Card struct {
	CardID       string     `json:"card_id"`
	Username     string     `json:"username"`
	Network      string     `json:"network"`
	Language     string     `json:"language"`
	Received     bool       `json:"received"`
	DisasterType string     `json:"disaster_type,omitempty"`
	ReportType   string     `json:"report_type,omitempty"`
	FloodDepth   *int       `json:"flood_depth,omitempty"`
	Text         string     `json:"text,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	Location     *Location  `json:"location,omitempty"`
	ImageURL     *string    `json:"image_url,omitempty"`
}
