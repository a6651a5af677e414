package models

import "time"

// Score is one scored submission belonging to the authenticated user.
// Older backend rows carry "f1" instead of "item_accuracy"; Accuracy
// resolves whichever is present.
type Score struct {
	ItemAccuracy  *float64  `json:"item_accuracy,omitempty"`
	F1            *float64  `json:"f1,omitempty"`
	L0Accuracy    *float64  `json:"l0_accuracy,omitempty"`
	L1Accuracy    *float64  `json:"l1_accuracy,omitempty"`
	L2Accuracy    *float64  `json:"l2_accuracy,omitempty"`
	L3Accuracy    *float64  `json:"l3_accuracy,omitempty"`
	L4Accuracy    *float64  `json:"l4_accuracy,omitempty"`
	BrandAccuracy *float64  `json:"brand_accuracy,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Accuracy returns the row's headline metric: item_accuracy when set,
// otherwise the legacy f1 value, otherwise zero.
func (s Score) Accuracy() float64 {
	if s.ItemAccuracy != nil {
		return *s.ItemAccuracy
	}
	if s.F1 != nil {
		return *s.F1
	}
	return 0
}

// UserStats summarizes the authenticated user's submission activity.
// The backend recomputes it wholesale on every fetch.
type UserStats struct {
	TotalSubmissions     int       `json:"total_submissions"`
	BestF1               float64   `json:"best_f1"`
	UploadsToday         int       `json:"uploads_today"`
	SubmissionsRemaining int       `json:"submissions_remaining"`
	MaxDailySubmissions  int       `json:"max_daily_submissions"`
	NextReset            time.Time `json:"next_reset"`
}

// ScoresResponse is the body of GET /scores.
type ScoresResponse struct {
	Scores []Score   `json:"scores"`
	Stats  UserStats `json:"stats"`
}
