package models

import "time"

// LeaderboardEntry is one ranked row. The backend returns entries already
// sorted by descending item accuracy; rank is implied by position.
type LeaderboardEntry struct {
	UserID        string    `json:"user_id"`
	ItemAccuracy  float64   `json:"item_accuracy"`
	L0Accuracy    *float64  `json:"l0_accuracy,omitempty"`
	L1Accuracy    *float64  `json:"l1_accuracy,omitempty"`
	L2Accuracy    *float64  `json:"l2_accuracy,omitempty"`
	L3Accuracy    *float64  `json:"l3_accuracy,omitempty"`
	L4Accuracy    *float64  `json:"l4_accuracy,omitempty"`
	BrandAccuracy *float64  `json:"brand_accuracy,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// LeaderboardResponse is the body of GET /leaderboard.
type LeaderboardResponse struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}
