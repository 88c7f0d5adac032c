package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/auth"
	"github.com/zulandar/switchboard/internal/models"
	syncpkg "github.com/zulandar/switchboard/internal/sync"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

// fakeRunner records sync requests and signals completion.
type fakeRunner struct {
	requests chan syncpkg.Request
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{requests: make(chan syncpkg.Request, 4)}
}

func (f *fakeRunner) Run(ctx context.Context, req syncpkg.Request) error {
	f.requests <- req
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Workspace{}, &models.Mapping{}, &models.ThreadContextEntry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB, *fakeRunner) {
	t.Helper()
	db := openTestDB(t)
	runner := newFakeRunner()
	verifier := &auth.Verifier{Secret: testSecret}
	srv := httptest.NewServer(NewRouter(db, verifier, runner))
	t.Cleanup(srv.Close)
	return srv, db, runner
}

// signedActionBody builds a form-encoded message-action body plus valid
// signature headers.
func signedActionBody(t *testing.T) (body string, timestamp string, signature string) {
	t.Helper()
	payload := `{
		"type": "message_action",
		"team": {"id": "T01ABC"},
		"user": {"id": "U99"},
		"channel": {"id": "C01"},
		"message": {"ts": "1700000000.000100", "thread_ts": "1700000000.000100", "text": "the deploy is broken again", "user": "U01"},
		"response_url": "https://hooks.slack.com/actions/T01ABC/123/abc"
	}`
	body = "payload=" + url.QueryEscape(payload)
	timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	signature = auth.Sign(testSecret, timestamp, []byte(body))
	return body, timestamp, signature
}

func postAction(t *testing.T, srv *httptest.Server, body, timestamp, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/slack/message-action", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if timestamp != "" {
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	}
	if signature != "" {
		req.Header.Set("X-Slack-Signature", signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post action: %v", err)
	}
	return resp
}

func TestMessageAction_ValidSignature(t *testing.T) {
	srv, _, runner := newTestServer(t)
	body, ts, sig := signedActionBody(t)

	resp := postAction(t, srv, body, ts, sig)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var ack struct {
		ResponseType string `json:"response_type"`
		Text         string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.ResponseType != "ephemeral" {
		t.Errorf("response_type = %q, want ephemeral", ack.ResponseType)
	}
	if ack.Text == "" {
		t.Error("ack text is empty")
	}

	// The sync runs detached; the handler must have handed it the payload.
	select {
	case req := <-runner.requests:
		if req.TeamID != "T01ABC" {
			t.Errorf("TeamID = %q, want T01ABC", req.TeamID)
		}
		if req.UserID != "U01" {
			t.Errorf("UserID = %q, want the message author U01", req.UserID)
		}
		if req.MessageTS != "1700000000.000100" {
			t.Errorf("MessageTS = %q", req.MessageTS)
		}
		if req.ResponseURL == "" {
			t.Error("ResponseURL not propagated")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator never invoked")
	}
}

func TestMessageAction_BadSignature(t *testing.T) {
	srv, _, runner := newTestServer(t)
	body, ts, _ := signedActionBody(t)

	resp := postAction(t, srv, body, ts, "v0="+strings.Repeat("0", 64))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var errBody struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&errBody)
	if errBody.Error != auth.ReasonSignatureMismatch {
		t.Errorf("error = %q, want %q", errBody.Error, auth.ReasonSignatureMismatch)
	}

	select {
	case <-runner.requests:
		t.Fatal("orchestrator invoked despite rejected signature")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMessageAction_MissingHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body, _, _ := signedActionBody(t)

	resp := postAction(t, srv, body, "", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMessageAction_TamperedBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body, ts, sig := signedActionBody(t)

	resp := postAction(t, srv, body+"x", ts, sig)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMessageAction_WrongInteractionType(t *testing.T) {
	srv, _, _ := newTestServer(t)
	payload := `{"type": "block_actions"}`
	body := "payload=" + url.QueryEscape(payload)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := auth.Sign(testSecret, ts, []byte(body))

	resp := postAction(t, srv, body, ts, sig)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Database  string `json:"database"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Database != "connected" {
		t.Errorf("database = %q, want connected", health.Database)
	}
	if health.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func seedMapping(t *testing.T, db *gorm.DB, status string) *models.Mapping {
	t.Helper()
	ws := &models.Workspace{
		SlackTeamID:        "T01ABC",
		SlackBotToken:      "xoxb-test",
		TrackerKind:        models.TrackerClickUp,
		TrackerToken:       "pk_test",
		DefaultDestination: "900123",
		Active:             true,
	}
	if err := db.FirstOrCreate(ws, models.Workspace{SlackTeamID: "T01ABC"}).Error; err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	m := &models.Mapping{
		SlackMessageTS: fmt.Sprintf("1700000000.%06d", time.Now().UnixNano()%1000000),
		WorkspaceID:    ws.ID,
		SlackChannelID: "C01",
		SlackUserID:    "U01",
		SlackTeamID:    "T01ABC",
		MessageText:    "help",
		SyncStatus:     status,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed mapping: %v", err)
	}
	return m
}

func TestMappingList(t *testing.T) {
	srv, db, _ := newTestServer(t)
	seedMapping(t, db, models.StatusCompleted)
	seedMapping(t, db, models.StatusFailed)

	resp, err := http.Get(srv.URL + "/api/mappings")
	if err != nil {
		t.Fatalf("get mappings: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Mappings []MappingRow `json:"mappings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Mappings) != 2 {
		t.Errorf("mapping count = %d, want 2", len(body.Mappings))
	}
}

func TestFailedMappings(t *testing.T) {
	srv, db, _ := newTestServer(t)
	seedMapping(t, db, models.StatusCompleted)
	failed := seedMapping(t, db, models.StatusFailed)

	resp, err := http.Get(srv.URL + "/api/failed-mappings")
	if err != nil {
		t.Fatalf("get failed mappings: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Mappings []MappingRow `json:"mappings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Mappings) != 1 {
		t.Fatalf("mapping count = %d, want 1", len(body.Mappings))
	}
	if body.Mappings[0].ID != failed.ID {
		t.Errorf("failed mapping id = %d, want %d", body.Mappings[0].ID, failed.ID)
	}
}

func TestMappingDetail(t *testing.T) {
	srv, db, _ := newTestServer(t)
	m := seedMapping(t, db, models.StatusCompleted)
	db.Create(&models.ThreadContextEntry{
		MappingID:     m.ID,
		ReplyUserName: "bob",
		ReplyText:     "looking",
		OrderIndex:    0,
	})

	resp, err := http.Get(fmt.Sprintf("%s/api/mappings/%d", srv.URL, m.ID))
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var detail MappingDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.WorkspaceTeam != "T01ABC" {
		t.Errorf("WorkspaceTeam = %q, want T01ABC", detail.WorkspaceTeam)
	}
	if len(detail.ThreadContext) != 1 || detail.ThreadContext[0].UserName != "bob" {
		t.Errorf("ThreadContext = %+v, want bob's reply", detail.ThreadContext)
	}
}

func TestMappingDetail_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/mappings/9999")
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRetry_FailedMapping(t *testing.T) {
	srv, db, _ := newTestServer(t)
	m := seedMapping(t, db, models.StatusFailed)

	resp, err := http.Post(fmt.Sprintf("%s/api/mappings/%d/retry", srv.URL, m.ID), "", nil)
	if err != nil {
		t.Fatalf("post retry: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got models.Mapping
	db.First(&got, m.ID)
	if got.SyncStatus != models.StatusPending {
		t.Errorf("SyncStatus = %q, want pending", got.SyncStatus)
	}
}

func TestRetry_NonFailedMapping(t *testing.T) {
	srv, db, _ := newTestServer(t)
	m := seedMapping(t, db, models.StatusProcessing)

	resp, err := http.Post(fmt.Sprintf("%s/api/mappings/%d/retry", srv.URL, m.ID), "", nil)
	if err != nil {
		t.Fatalf("post retry: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}
