package models

// CardRequest is the body of POST /cards
type CardRequest struct {
	Username string `json:"username" validate:"required"`
	Network  string `json:"network" validate:"required"`
	Language string `json:"language" validate:"required"`
}

// CardData carries the report subtype fields nested under card_data
type CardData struct {
	ReportType string `json:"report_type" validate:"required"`
	FloodDepth *int   `json:"flood_depth,omitempty"`
}

// ReportRequest is the body of PUT /cards/{cardId}
type ReportRequest struct {
	DisasterType string    `json:"disaster_type" validate:"required"`
	CardData     CardData  `json:"card_data"`
	Text         string    `json:"text,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    string    `json:"created_at" validate:"required,iso8601"`
	Location     *Location `json:"location" validate:"required"`
}

// ImagePatchRequest is the body of PATCH /cards/{cardId}
type ImagePatchRequest struct {
	ImageURL string `json:"image_url" validate:"required"`
}
