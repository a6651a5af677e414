package stubserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/datathon-cli/internal/config"
	"github.com/isdelr/datathon-cli/internal/models"
)

func newTestServer(t *testing.T, maxDaily int) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	truthPath := filepath.Join(dir, "truth.csv")
	if err := os.WriteFile(truthPath, []byte(testTruth), 0o644); err != nil {
		t.Fatalf("failed to write truth file: %v", err)
	}

	srv, err := New(&config.StubConfig{
		DatabasePath:  filepath.Join(dir, "stub.db"),
		TruthPath:     truthPath,
		JWTSecret:     "test-secret",
		MaxDaily:      maxDaily,
		ResetSchedule: "0 0 * * *",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func login(t *testing.T, ts *httptest.Server, email, password string) models.LoginResponse {
	t.Helper()
	body, _ := json.Marshal(models.Credentials{Email: email, Password: password})
	resp, err := http.Post(ts.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var lr models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return lr
}

func register(t *testing.T, ts *httptest.Server, username string) models.LoginResponse {
	t.Helper()
	email := username + "@example.com"
	payload := fmt.Sprintf(`{"username":%q,"email":%q,"password":"secret"}`, username, email)
	resp, err := http.Post(ts.URL+"/register", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	return login(t, ts, email, "secret")
}

func upload(t *testing.T, ts *httptest.Server, token, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to build multipart body: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write multipart body: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/upload", &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	return resp
}

func decodeErrorEnvelope(t *testing.T, resp *http.Response) models.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var er models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return er
}

func TestLoginSeededDemoUser(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")
	if lr.Token == "" {
		t.Error("login returned an empty token")
	}
	if lr.User.Username != "demo" {
		t.Errorf("Username = %q, want %q", lr.User.Username, "demo")
	}
	if lr.User.PasswordHash != "" {
		t.Error("login response leaked the password hash")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t, 5)
	body := strings.NewReader(`{"email":"demo@example.com","password":"nope"}`)
	resp, err := http.Post(ts.URL+"/login", "application/json", body)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	er := decodeErrorEnvelope(t, resp)
	if er.Error != "Invalid credentials" {
		t.Errorf("error = %q, want %q", er.Error, "Invalid credentials")
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, 5)
	resp, err := http.Post(ts.URL+"/register", "application/json",
		strings.NewReader(`{"username":"x","email":"","password":"y"}`))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadRequiresAuth(t *testing.T) {
	ts := newTestServer(t, 5)
	resp := upload(t, ts, "", "preds.csv", testTruth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUploadPerfectSubmission(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")

	resp := upload(t, ts, lr.Token, "preds.csv", testTruth)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res models.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if res.ItemAccuracy != 1.0 {
		t.Errorf("ItemAccuracy = %v, want 1.0", res.ItemAccuracy)
	}
	if res.BrandAccuracy == nil || *res.BrandAccuracy != 1.0 {
		t.Errorf("BrandAccuracy = %v, want 1.0", res.BrandAccuracy)
	}
	if res.L4Accuracy == nil || *res.L4Accuracy != 1.0 {
		t.Errorf("L4Accuracy = %v, want 1.0", res.L4Accuracy)
	}
	if res.SubmissionsRemaining != 4 {
		t.Errorf("SubmissionsRemaining = %d, want 4", res.SubmissionsRemaining)
	}
	if res.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestUploadPartialSubmission(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")

	preds := `walmart_id,l0,l1,l2,l3,l4,brand
1,food,snacks,chips,potato,ridged,lays
2,food,drinks,soda,cola,diet,pepsi
`
	resp := upload(t, ts, lr.Token, "preds.csv", preds)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res models.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if res.ItemAccuracy != 0.5 {
		t.Errorf("ItemAccuracy = %v, want 0.5", res.ItemAccuracy)
	}
}

func TestUploadRejectsNonCSV(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")

	resp := upload(t, ts, lr.Token, "preds.txt", testTruth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	er := decodeErrorEnvelope(t, resp)
	if !strings.Contains(er.Error, "not a CSV file") {
		t.Errorf("error = %q, want it to mention the CSV requirement", er.Error)
	}
}

func TestUploadRejectsMissingWalmartID(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")

	resp := upload(t, ts, lr.Token, "preds.csv", "id,l0,brand\n1,a,b\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	er := decodeErrorEnvelope(t, resp)
	if !strings.Contains(er.Error, "walmart_id") {
		t.Errorf("error = %q, want it to name the walmart_id column", er.Error)
	}
}

func TestUploadQuotaExhausted(t *testing.T) {
	ts := newTestServer(t, 1)
	lr := login(t, ts, "demo@example.com", "datathon")

	resp := upload(t, ts, lr.Token, "preds.csv", testTruth)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first upload status = %d, want 200", resp.StatusCode)
	}

	resp = upload(t, ts, lr.Token, "preds.csv", testTruth)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second upload status = %d, want 429", resp.StatusCode)
	}
	er := decodeErrorEnvelope(t, resp)
	if er.Error != "Daily submission limit reached" {
		t.Errorf("error = %q, want the limit message", er.Error)
	}
	if er.NextReset == nil {
		t.Fatal("nextReset missing from the 429 envelope")
	}
	if !er.NextReset.After(time.Now().Add(-time.Minute)) {
		t.Errorf("nextReset = %v, want a future time", er.NextReset)
	}
}

func TestLeaderboardRanking(t *testing.T) {
	ts := newTestServer(t, 5)
	strong := register(t, ts, "strong")
	weak := register(t, ts, "weak")

	resp := upload(t, ts, strong.Token, "preds.csv", testTruth)
	resp.Body.Close()
	partial := `walmart_id,l0,l1,l2,l3,l4,brand
1,food,snacks,chips,potato,ridged,lays
`
	resp = upload(t, ts, weak.Token, "preds.csv", partial)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/leaderboard")
	if err != nil {
		t.Fatalf("leaderboard request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var lb models.LeaderboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatalf("failed to decode leaderboard: %v", err)
	}
	if len(lb.Leaderboard) != 2 {
		t.Fatalf("got %d entries, want 2", len(lb.Leaderboard))
	}
	if lb.Leaderboard[0].UserID != strong.User.ID {
		t.Errorf("top entry = %q, want the perfect scorer %q", lb.Leaderboard[0].UserID, strong.User.ID)
	}
	if lb.Leaderboard[0].ItemAccuracy != 1.0 {
		t.Errorf("top ItemAccuracy = %v, want 1.0", lb.Leaderboard[0].ItemAccuracy)
	}
	if lb.Leaderboard[1].ItemAccuracy != 0.25 {
		t.Errorf("second ItemAccuracy = %v, want 0.25", lb.Leaderboard[1].ItemAccuracy)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	ts := newTestServer(t, 5)
	strong := register(t, ts, "strong")
	weak := register(t, ts, "weak")
	for _, lr := range []models.LoginResponse{strong, weak} {
		resp := upload(t, ts, lr.Token, "preds.csv", testTruth)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/leaderboard?limit=1")
	if err != nil {
		t.Fatalf("leaderboard request failed: %v", err)
	}
	defer resp.Body.Close()
	var lb models.LeaderboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatalf("failed to decode leaderboard: %v", err)
	}
	if len(lb.Leaderboard) != 1 {
		t.Errorf("got %d entries, want 1", len(lb.Leaderboard))
	}
}

func TestLeaderboardRejectsBadLimit(t *testing.T) {
	ts := newTestServer(t, 5)
	resp, err := http.Get(ts.URL + "/leaderboard?limit=zero")
	if err != nil {
		t.Fatalf("leaderboard request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestScoresAndStats(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")

	partial := `walmart_id,l0,l1,l2,l3,l4,brand
1,food,snacks,chips,potato,ridged,lays
2,food,drinks,soda,cola,diet,pepsi
`
	for _, content := range []string{partial, testTruth} {
		resp := upload(t, ts, lr.Token, "preds.csv", content)
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/scores", nil)
	req.Header.Set("Authorization", "Bearer "+lr.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("scores request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sr models.ScoresResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("failed to decode scores: %v", err)
	}
	if len(sr.Scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(sr.Scores))
	}
	if sr.Scores[0].Accuracy() != 1.0 {
		t.Errorf("newest score = %v, want 1.0", sr.Scores[0].Accuracy())
	}
	if sr.Stats.TotalSubmissions != 2 {
		t.Errorf("TotalSubmissions = %d, want 2", sr.Stats.TotalSubmissions)
	}
	if sr.Stats.BestF1 != 1.0 {
		t.Errorf("BestF1 = %v, want 1.0", sr.Stats.BestF1)
	}
	if sr.Stats.UploadsToday != 2 {
		t.Errorf("UploadsToday = %d, want 2", sr.Stats.UploadsToday)
	}
	if sr.Stats.SubmissionsRemaining != 3 {
		t.Errorf("SubmissionsRemaining = %d, want 3", sr.Stats.SubmissionsRemaining)
	}
	if sr.Stats.MaxDailySubmissions != 5 {
		t.Errorf("MaxDailySubmissions = %d, want 5", sr.Stats.MaxDailySubmissions)
	}
}

func TestRemainingSubmissionsEndpoints(t *testing.T) {
	ts := newTestServer(t, 5)
	lr := login(t, ts, "demo@example.com", "datathon")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/remaining-submissions", nil)
	req.Header.Set("Authorization", "Bearer "+lr.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var rs models.RemainingSubmissions
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	resp.Body.Close()
	if rs.SubmissionsRemaining != 5 {
		t.Errorf("SubmissionsRemaining = %d, want 5", rs.SubmissionsRemaining)
	}
	if rs.MaxDailySubmissions != 5 {
		t.Errorf("MaxDailySubmissions = %d, want 5", rs.MaxDailySubmissions)
	}
	if !rs.NextReset.After(time.Now().Add(-time.Minute)) {
		t.Errorf("NextReset = %v, want a future time", rs.NextReset)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/submissions-remaining", nil)
	req.Header.Set("Authorization", "Bearer "+lr.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var legacy models.SubmissionsRemaining
	if err := json.NewDecoder(resp.Body).Decode(&legacy); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	resp.Body.Close()
	if legacy.SubmissionsRemaining != 5 {
		t.Errorf("legacy SubmissionsRemaining = %d, want 5", legacy.SubmissionsRemaining)
	}
}

func TestScoresRequireAuth(t *testing.T) {
	ts := newTestServer(t, 5)
	for _, path := range []string{"/scores", "/remaining-submissions", "/submissions-remaining"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, resp.StatusCode)
		}
	}
}
