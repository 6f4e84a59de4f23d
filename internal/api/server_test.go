package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/framelink/internal/api/models"
	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
)

func testStatus() models.SessionData {
	return models.SessionData{
		Role:       events.RoleProducer,
		SessionID:  "session-1",
		State:      "serving",
		SocketPath: "/tmp/dmabuf_socket",
		Geometry:   frames.DefaultGeometry,
		Counters:   map[string]uint64{"published": 7},
	}
}

func authGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.SetBasicAuth("test", "test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func TestHealthWithoutAuth(t *testing.T) {
	server := NewServer(&Options{AuthUsername: "test", AuthPassword: "test"})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body models.HealthData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Expected status ok, got %q", body.Status)
	}
}

func TestStatusReportsSession(t *testing.T) {
	server := NewServer(&Options{AuthUsername: "test", AuthPassword: "test", Status: testStatus})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp := authGet(t, ts.URL+"/api/status")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body models.SessionData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if body.Role != events.RoleProducer || body.State != "serving" {
		t.Errorf("Unexpected session %+v", body)
	}
	if body.Geometry != frames.DefaultGeometry {
		t.Errorf("Expected geometry %s, got %s", frames.DefaultGeometry, body.Geometry)
	}
	if body.Counters["published"] != 7 {
		t.Errorf("Expected 7 published, got %d", body.Counters["published"])
	}
}

func TestStatusWithoutSession(t *testing.T) {
	server := NewServer(&Options{})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", resp.StatusCode)
	}
}

func TestStatusAuthFailure(t *testing.T) {
	server := NewServer(&Options{AuthUsername: "test", AuthPassword: "test", Status: testStatus})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.Contains(got, "Basic") {
		t.Errorf("Expected basic auth challenge, got %q", got)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.SetBasicAuth("wrong", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 for wrong auth, got %d", resp.StatusCode)
	}
}

func TestVersion(t *testing.T) {
	server := NewServer(nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	var body models.VersionData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode version: %v", err)
	}
	if body.Version == "" || body.GoVersion == "" {
		t.Errorf("Expected version fields, got %+v", body)
	}
}

func TestLogsTail(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})

	logger := logging.GetLogger("apitest")
	for i := range 5 {
		logger.Info("frame skipped", "batch", i)
	}

	server := NewServer(&Options{})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?limit=2&module=apitest")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Entries []models.LogEntryData `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode logs: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(body.Entries))
	}
	for _, e := range body.Entries {
		if e.Module != "apitest" || e.Message != "frame skipped" {
			t.Errorf("Unexpected entry %+v", e)
		}
	}
	// Newest last.
	if fmt.Sprint(body.Entries[1].Attributes["batch"]) != "4" {
		t.Errorf("Expected newest entry last, got %+v", body.Entries[1].Attributes)
	}
}

func TestMetricsHandlerMounted(t *testing.T) {
	prom := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("framelink_frames_published_total 1\n"))
	})
	server := NewServer(&Options{AuthUsername: "test", AuthPassword: "test", PrometheusHandler: prom})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected metrics without auth, got %d", resp.StatusCode)
	}
}

func TestSSEStreamsSessionEvents(t *testing.T) {
	bus := events.New()
	server := NewServer(&Options{AuthUsername: "test", AuthPassword: "test", EventBus: bus})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	// The subscription only exists once the handler runs, so keep publishing
	// until the client sees an event.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bus.Publish(events.SessionStateChangedEvent{
					Role:      events.RoleConsumer,
					SessionID: "sse-session",
					From:      "connecting",
					To:        "connected",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}
	}()

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials))
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	messageChan := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") || strings.HasPrefix(line, "event:") {
				messageChan <- line
			}
		}
	}()

	var sawType, sawData bool
	timeout := time.After(2 * time.Second)
	for !sawType || !sawData {
		select {
		case msg := <-messageChan:
			if strings.Contains(msg, "session-state") {
				sawType = true
			}
			if strings.Contains(msg, "sse-session") {
				sawData = true
			}
		case <-timeout:
			t.Fatalf("Timeout waiting for session event (type=%v data=%v)", sawType, sawData)
		}
	}
}

func TestSSEAuthFailure(t *testing.T) {
	server := NewServer(&Options{AuthUsername: "test", AuthPassword: "test", EventBus: events.New()})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte("wrong:wrong"))
	resp, err = http.Get(fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 for wrong auth, got %d", resp.StatusCode)
	}
}
