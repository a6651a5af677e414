package stubserver

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/datathon-cli/internal/database"
	"github.com/isdelr/datathon-cli/internal/models"
)

// Submission is one scored upload as the stub records it.
type Submission struct {
	ID            string
	UserID        string
	FileName      string
	FileSize      int64
	ItemAccuracy  float64
	BrandAccuracy float64
	L0Accuracy    float64
	L1Accuracy    float64
	L2Accuracy    float64
	L3Accuracy    float64
	L4Accuracy    float64
	CreatedAt     time.Time
}

// Store provides user and submission persistence for the stub backend.
type Store struct {
	db *sql.DB
}

// OpenStore opens the stub database and applies the schema.
func OpenStore(path string) (*Store, error) {
	db, err := database.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE,
		email TEXT UNIQUE,
		password_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		item_accuracy REAL NOT NULL,
		brand_accuracy REAL NOT NULL,
		l0_accuracy REAL NOT NULL,
		l1_accuracy REAL NOT NULL,
		l2_accuracy REAL NOT NULL,
		l3_accuracy REAL NOT NULL,
		l4_accuracy REAL NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_user_created
		ON submissions(user_id, created_at);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser creates a new user, hashing their password.
func (s *Store) CreateUser(username, email, password string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	stmt, err := s.db.Prepare("INSERT INTO users(id, username, email, password_hash) VALUES(?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(user.ID, user.Username, user.Email, user.PasswordHash); err != nil {
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *Store) AuthenticateUser(email, password string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?", email)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("authentication failed: user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, fmt.Errorf("authentication failed: invalid password")
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *Store) GetUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, email, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, fmt.Errorf("user with ID %s not found", id)
		}
		return models.User{}, err
	}
	return user, nil
}

// CountUsers reports how many accounts exist.
func (s *Store) CountUsers() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// InsertSubmission records one scored upload.
func (s *Store) InsertSubmission(sub Submission) error {
	stmt, err := s.db.Prepare(`INSERT INTO submissions(
		id, user_id, file_name, file_size,
		item_accuracy, brand_accuracy, l0_accuracy, l1_accuracy, l2_accuracy, l3_accuracy, l4_accuracy,
		created_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(sub.ID, sub.UserID, sub.FileName, sub.FileSize,
		sub.ItemAccuracy, sub.BrandAccuracy, sub.L0Accuracy, sub.L1Accuracy,
		sub.L2Accuracy, sub.L3Accuracy, sub.L4Accuracy, sub.CreatedAt)
	return err
}

// CountSince counts a user's submissions at or after the window start.
func (s *Store) CountSince(userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM submissions WHERE user_id = ? AND created_at >= ?", userID, since).Scan(&n)
	return n, err
}

// BestScores returns each user's best submission, sorted by descending item
// accuracy. Rank is the position in the returned slice.
func (s *Store) BestScores(limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Query(`SELECT user_id, MAX(item_accuracy) AS item_accuracy,
		brand_accuracy, l0_accuracy, l1_accuracy, l2_accuracy, l3_accuracy, l4_accuracy, created_at
		FROM submissions GROUP BY user_id ORDER BY item_accuracy DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		var brand, l0, l1, l2, l3, l4 float64
		if err := rows.Scan(&e.UserID, &e.ItemAccuracy, &brand, &l0, &l1, &l2, &l3, &l4, &e.Timestamp); err != nil {
			return nil, err
		}
		e.BrandAccuracy = &brand
		e.L0Accuracy = &l0
		e.L1Accuracy = &l1
		e.L2Accuracy = &l2
		e.L3Accuracy = &l3
		e.L4Accuracy = &l4
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ScoresForUser returns the user's submissions, newest first.
func (s *Store) ScoresForUser(userID string, limit int) ([]models.Score, error) {
	rows, err := s.db.Query(`SELECT item_accuracy, brand_accuracy,
		l0_accuracy, l1_accuracy, l2_accuracy, l3_accuracy, l4_accuracy, created_at
		FROM submissions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := []models.Score{}
	for rows.Next() {
		var item, brand, l0, l1, l2, l3, l4 float64
		var sc models.Score
		if err := rows.Scan(&item, &brand, &l0, &l1, &l2, &l3, &l4, &sc.Timestamp); err != nil {
			return nil, err
		}
		sc.ItemAccuracy = &item
		sc.BrandAccuracy = &brand
		sc.L0Accuracy = &l0
		sc.L1Accuracy = &l1
		sc.L2Accuracy = &l2
		sc.L3Accuracy = &l3
		sc.L4Accuracy = &l4
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// StatsForUser computes the aggregate figures for the stats block. The
// windowStart bounds what counts as "today".
func (s *Store) StatsForUser(userID string, windowStart time.Time) (total int, best float64, today int, err error) {
	err = s.db.QueryRow("SELECT COUNT(*), COALESCE(MAX(item_accuracy), 0) FROM submissions WHERE user_id = ?", userID).Scan(&total, &best)
	if err != nil {
		return 0, 0, 0, err
	}
	today, err = s.CountSince(userID, windowStart)
	if err != nil {
		return 0, 0, 0, err
	}
	return total, best, today, nil
}
