package stubserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/datathon-cli/internal/models"
	"github.com/isdelr/datathon-cli/internal/validate"
)

// multipart framing plus headers on top of the file itself
const uploadBodySlack = 16 * 1024

// Handler serves the scoring API.
type Handler struct {
	store  *Store
	scorer *Scorer
	quota  *Quota
	auth   *Authenticator
}

// NewHandler wires the handler's dependencies.
func NewHandler(store *Store, scorer *Scorer, quota *Quota, auth *Authenticator) *Handler {
	return &Handler{store: store, scorer: scorer, quota: quota, auth: auth}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// Register handles new user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Username == "" || payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.store.CreateUser(payload.Username, payload.Email, payload.Password)
	if err != nil {
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		writeError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication and token generation.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.store.AuthenticateUser(payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.auth.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: user})
}

// Upload scores one CSV submission.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	now := time.Now().UTC()
	used, err := h.store.CountSince(claims.UserID, h.quota.WindowStart(now))
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to count submissions")
		writeError(w, http.StatusInternalServerError, "Failed to check quota")
		return
	}
	if used >= h.quota.Max() {
		next := h.quota.NextReset(now)
		writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
			Error:     "Daily submission limit reached",
			NextReset: &next,
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, validate.MaxFileSize+uploadBodySlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusBadRequest, "file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "upload must include a CSV file field")
		return
	}
	defer file.Close()

	if _, err := validate.Stream(header.Filename, header.Size, header.Header.Get("Content-Type"), file); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	bd, err := h.scorer.Score(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := Submission{
		ID:            uuid.New().String(),
		UserID:        claims.UserID,
		FileName:      header.Filename,
		FileSize:      header.Size,
		ItemAccuracy:  bd.Item,
		BrandAccuracy: bd.Brand,
		L0Accuracy:    bd.Level[0],
		L1Accuracy:    bd.Level[1],
		L2Accuracy:    bd.Level[2],
		L3Accuracy:    bd.Level[3],
		L4Accuracy:    bd.Level[4],
		CreatedAt:     now,
	}
	if err := h.store.InsertSubmission(sub); err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to record submission")
		writeError(w, http.StatusInternalServerError, "Failed to record submission")
		return
	}

	log.Info().
		Str("user_id", claims.UserID).
		Str("file", header.Filename).
		Float64("item_accuracy", bd.Item).
		Int("matched", bd.Matched).
		Msg("Submission scored")

	writeJSON(w, http.StatusOK, models.UploadResult{
		ItemAccuracy:         bd.Item,
		BrandAccuracy:        f64(bd.Brand),
		L0Accuracy:           f64(bd.Level[0]),
		L1Accuracy:           f64(bd.Level[1]),
		L2Accuracy:           f64(bd.Level[2]),
		L3Accuracy:           f64(bd.Level[3]),
		L4Accuracy:           f64(bd.Level[4]),
		Timestamp:            now,
		SubmissionsRemaining: h.quota.Max() - used - 1,
	})
}

// Leaderboard returns the ranked best scores across users.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.store.BestScores(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query leaderboard")
		writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, models.LeaderboardResponse{Leaderboard: entries})
}

// Scores returns the user's score history plus their stats block.
func (h *Handler) Scores(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	scores, err := h.store.ScoresForUser(claims.UserID, 50)
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to query scores")
		writeError(w, http.StatusInternalServerError, "Failed to fetch scores")
		return
	}
	stats, err := h.statsFor(claims.UserID, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to compute stats")
		writeError(w, http.StatusInternalServerError, "Failed to fetch scores")
		return
	}
	writeJSON(w, http.StatusOK, models.ScoresResponse{Scores: scores, Stats: stats})
}

// RemainingSubmissions returns the quota snapshot.
func (h *Handler) RemainingSubmissions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}
	stats, err := h.statsFor(claims.UserID, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to compute stats")
		writeError(w, http.StatusInternalServerError, "Failed to fetch remaining submissions")
		return
	}
	writeJSON(w, http.StatusOK, models.RemainingSubmissions{
		SubmissionsRemaining: stats.SubmissionsRemaining,
		MaxDailySubmissions:  stats.MaxDailySubmissions,
		NextReset:            stats.NextReset,
	})
}

// SubmissionsRemaining serves the older quota endpoint.
func (h *Handler) SubmissionsRemaining(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}
	stats, err := h.statsFor(claims.UserID, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to compute stats")
		writeError(w, http.StatusInternalServerError, "Failed to fetch remaining submissions")
		return
	}
	writeJSON(w, http.StatusOK, models.SubmissionsRemaining{SubmissionsRemaining: stats.SubmissionsRemaining})
}

func (h *Handler) statsFor(userID string, now time.Time) (models.UserStats, error) {
	total, best, today, err := h.store.StatsForUser(userID, h.quota.WindowStart(now))
	if err != nil {
		return models.UserStats{}, err
	}
	remaining := h.quota.Max() - today
	if remaining < 0 {
		remaining = 0
	}
	return models.UserStats{
		TotalSubmissions:     total,
		BestF1:               best,
		UploadsToday:         today,
		SubmissionsRemaining: remaining,
		MaxDailySubmissions:  h.quota.Max(),
		NextReset:            h.quota.NextReset(now),
	}, nil
}

func f64(v float64) *float64 {
	return &v
}
