package models

import "time"

// UploadResult is the body of a successful POST /upload. The per-level
// accuracies are omitted when the backend scores item accuracy only.
// Note the mixed tag casing: submissionsRemaining is camelCase on the
// wire while the accuracy fields are snake_case.
type UploadResult struct {
	ItemAccuracy         float64   `json:"item_accuracy"`
	BrandAccuracy        *float64  `json:"brand_accuracy,omitempty"`
	L0Accuracy           *float64  `json:"l0_accuracy,omitempty"`
	L1Accuracy           *float64  `json:"l1_accuracy,omitempty"`
	L2Accuracy           *float64  `json:"l2_accuracy,omitempty"`
	L3Accuracy           *float64  `json:"l3_accuracy,omitempty"`
	L4Accuracy           *float64  `json:"l4_accuracy,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	SubmissionsRemaining int       `json:"submissionsRemaining"`
}

// RemainingSubmissions is the body of GET /remaining-submissions.
type RemainingSubmissions struct {
	SubmissionsRemaining int       `json:"submissions_remaining"`
	MaxDailySubmissions  int       `json:"max_daily_submissions"`
	NextReset            time.Time `json:"next_reset"`
}

// SubmissionsRemaining is the body of the older GET /submissions-remaining
// endpoint, kept for clients that predate the richer quota payload.
type SubmissionsRemaining struct {
	SubmissionsRemaining int `json:"submissionsRemaining"`
}

// ErrorResponse is the backend's error envelope. NextReset is only set on
// quota errors (HTTP 429).
type ErrorResponse struct {
	Error     string     `json:"error"`
	NextReset *time.Time `json:"nextReset,omitempty"`
}
