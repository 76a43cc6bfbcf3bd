package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/analytics"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/scene"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/scene2d"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

const tinyStore = `name: tiny
dt: 0.05
steps: 400
seed: 7
environment:
  width: 10
  height: 8
  walls:
    - [[0, 0], [10, 0]]
    - [[10, 0], [10, 8]]
    - [[10, 8], [0, 8]]
    - [[0, 8], [0, 0]]
  cashiers:
    - {pos: [6, 6], size: [1, 0.5], service_point: [6.5, 5.4]}
routing:
  grid_size: 0.25
  obstacle_buffer: 0.2
queue:
  slots: {start: [4, 5.4], step: [-0.8, 0], count: 3}
  service_time: {min: 1, max: 1}
agents:
  spawn_rate: 2
  max_agents: 20
  spawn_point: [2, 2]
  exit_sequence: [[1, 1]]
  points_of_interest:
    - {name: shelf, pos: [5, 3], prob: 1}
`

func writeProject(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "store.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// loaded returns a server with the tiny store loaded and its hub running,
// plus an HTTP test server in front of it.
func loaded(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(writeProject(t, tinyStore), 0, 1, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.startHub(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestLoadMissingProject(t *testing.T) {
	s := New(t.TempDir(), 0, 1, nil)
	if err := s.Load(); err == nil {
		t.Error("expected error for a directory without store.yaml")
	}
}

func TestLoadRejectsInvalidSpec(t *testing.T) {
	bad := strings.Replace(tinyStore, "width: 10", "width: 0", 1)
	s := New(writeProject(t, bad), 0, 1, nil)
	err := s.Load()
	if !errors.Is(err, validation.ErrInvalidSpec) {
		t.Fatalf("err = %v, want ErrInvalidSpec", err)
	}
}

func TestEndpointsBeforeLoad(t *testing.T) {
	s := New(t.TempDir(), 0, 1, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, path := range []string{"/api/frame", "/api/layout", "/api/queue", "/api/config", "/api/validation", "/api/summary", "/api/ws"} {
		if code := getJSON(t, ts.URL+path, nil); code != http.StatusServiceUnavailable {
			t.Errorf("%s: status %d, want 503", path, code)
		}
	}
}

func TestFrameEndpoint(t *testing.T) {
	s, ts := loaded(t)
	if !s.Step(100) {
		t.Fatal("step did not run")
	}

	var f scene.Frame
	if code := getJSON(t, ts.URL+"/api/frame", &f); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if f.Metadata.Tick != 100 || f.Metadata.Store != "tiny" {
		t.Errorf("metadata = %+v", f.Metadata)
	}
	if f.Metadata.RunID == "" {
		t.Error("frame missing run id")
	}
	if len(f.Cashiers) != 1 {
		t.Errorf("cashiers = %d, want 1", len(f.Cashiers))
	}
}

func TestLayoutEndpoint(t *testing.T) {
	_, ts := loaded(t)
	var sc scene2d.Scene2D
	if code := getJSON(t, ts.URL+"/api/layout", &sc); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(sc.Walls) != 4 || len(sc.Slots) != 3 || sc.Walkable == nil {
		t.Errorf("layout = %d walls, %d slots, overlay %v", len(sc.Walls), len(sc.Slots), sc.Walkable != nil)
	}
}

func TestQueueEndpoint(t *testing.T) {
	s, ts := loaded(t)
	s.Step(200)
	var q queueView
	if code := getJSON(t, ts.URL+"/api/queue", &q); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(q.Cashiers) != 1 || q.Busy < 0 || q.Busy > 1 {
		t.Errorf("queue view = %+v", q)
	}
	if len(q.Queue) != len(s.Frame().Queue) {
		t.Errorf("queue = %v, frame queue = %v", q.Queue, s.Frame().Queue)
	}
}

func TestConfigEndpoint(t *testing.T) {
	_, ts := loaded(t)
	var cfg map[string]any
	if code := getJSON(t, ts.URL+"/api/config", &cfg); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if cfg["name"] != "tiny" {
		t.Errorf("name = %v", cfg["name"])
	}
}

func TestSummaryAndValidation(t *testing.T) {
	s, ts := loaded(t)
	s.Step(200)

	var sum analytics.Summary
	if code := getJSON(t, ts.URL+"/api/summary", &sum); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if sum.Ticks != 200 || sum.Store != "tiny" {
		t.Errorf("summary ticks %d store %q", sum.Ticks, sum.Store)
	}

	var report validation.Report
	if code := getJSON(t, ts.URL+"/api/validation", &report); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if !report.Valid {
		t.Errorf("report invalid: %v", report.Errors)
	}
	levels := map[validation.Level]bool{}
	for _, r := range report.Info {
		levels[r.Level] = true
	}
	if !levels[validation.LevelRouting] || !levels[validation.LevelRun] {
		t.Errorf("info levels = %v, want routing and run", levels)
	}
}

func TestStepStopsAtSpecSteps(t *testing.T) {
	s, _ := loaded(t)
	s.Step(1000)
	if got := s.Frame().Metadata.Tick; got != 400 {
		t.Errorf("tick = %d, want 400", got)
	}
	if s.Step(1) {
		t.Error("step ran after the run finished")
	}
}

func TestControl(t *testing.T) {
	s, ts := loaded(t)

	post := func(body string) int {
		resp, err := http.Post(ts.URL+"/api/control", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		body       string
		status     int
		wantSpeed  float64
		wantPaused bool
	}{
		{`{"type":"set_speed","payload":{"speed":4}}`, http.StatusOK, 4, false},
		{`{"type":"set_speed","payload":{"speed":1000}}`, http.StatusOK, maxSpeed, false},
		{`{"type":"set_speed","payload":{"speed":-1}}`, http.StatusBadRequest, maxSpeed, false},
		{`{"type":"pause"}`, http.StatusOK, maxSpeed, true},
		{`{"type":"resume"}`, http.StatusOK, maxSpeed, false},
		{`{"type":"rewind"}`, http.StatusBadRequest, maxSpeed, false},
		{`not json`, http.StatusBadRequest, maxSpeed, false},
	}
	for _, tt := range tests {
		if code := post(tt.body); code != tt.status {
			t.Errorf("%s: status %d, want %d", tt.body, code, tt.status)
		}
		speed, paused := s.control()
		if speed != tt.wantSpeed || paused != tt.wantPaused {
			t.Errorf("%s: speed %v paused %v, want %v %v", tt.body, speed, paused, tt.wantSpeed, tt.wantPaused)
		}
	}
}

func TestIndex(t *testing.T) {
	_, ts := loaded(t)
	if code := getJSON(t, ts.URL+"/", nil); code != http.StatusOK {
		t.Errorf("index status %d", code)
	}
	if code := getJSON(t, ts.URL+"/nope", nil); code != http.StatusNotFound {
		t.Errorf("unknown path status %d, want 404", code)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("reading feed: %v", err)
	}
	return env
}

func TestWebsocketFeed(t *testing.T) {
	s, ts := loaded(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if env := readEnvelope(t, conn); env.Type != EventLayout {
		t.Fatalf("first message %q, want layout", env.Type)
	}
	if env := readEnvelope(t, conn); env.Type != EventFrame {
		t.Fatalf("second message %q, want frame", env.Type)
	}

	// The hub registers the viewer asynchronously; keep stepping until a
	// frame from this step arrives.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.Step(5)
		env := readEnvelope(t, conn)
		if env.Type != EventFrame {
			continue
		}
		var f scene.Frame
		if err := json.Unmarshal(env.Payload, &f); err != nil {
			t.Fatal(err)
		}
		if f.Metadata.Tick > 0 {
			break
		}
	}

	if err := conn.WriteJSON(Envelope{Type: ActionPause}); err != nil {
		t.Fatal(err)
	}
	for time.Now().Before(deadline) {
		if _, paused := s.control(); paused {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("pause over the websocket never applied")
}

func TestLoopAdvancesAndStops(t *testing.T) {
	s, _ := loaded(t)
	s.SetSpeed(maxSpeed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.loop(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.Frame().Metadata.Tick == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
	if s.Frame().Metadata.Tick == 0 {
		t.Error("loop never advanced the simulation")
	}
}

func TestShutdownLogsUnfinishedRequests(t *testing.T) {
	var logs bytes.Buffer
	s := New("", 0, 1, slog.New(slog.NewTextHandler(&logs, nil)))

	entered, release := make(chan struct{}), make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.Serve(ln)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}
	s.shutdown(srv, time.Millisecond)
	close(release)

	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "shutting down http server") {
		t.Errorf("log = %q, want a shutdown warning", out)
	}
}
