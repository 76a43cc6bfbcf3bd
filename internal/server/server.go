// Package server runs a simulation in the background and serves its state
// to viewers over HTTP and a websocket feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/analytics"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/routing"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/scene"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/scene2d"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/sim"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

const (
	// frameInterval is the wall-clock period between published frames.
	frameInterval = 50 * time.Millisecond
	// maxTicksPerFrame bounds the work done per frame when the simulation
	// cannot keep up with the requested speed.
	maxTicksPerFrame = 200
	// sampleEvery is the timeline resolution of the run summary, in ticks.
	sampleEvery = 20
	// shutdownTimeout bounds how long open requests may delay shutdown.
	shutdownTimeout = 5 * time.Second

	minSpeed = 0.1
	maxSpeed = 50.0
)

// ErrNotLoaded is returned by operations that need a loaded project.
var ErrNotLoaded = errors.New("server: project not loaded")

// Server is the local state feed for a store project.
type Server struct {
	projectPath string
	port        int
	logger      *slog.Logger

	spec       *spec.StoreSpec
	specReport *validation.Report
	layout     *scene2d.Scene2D

	simMu     sync.Mutex
	sim       *sim.Simulation
	collector *analytics.Collector
	finished  bool

	frameMu sync.RWMutex
	frame   *scene.Frame

	ctlMu  sync.Mutex
	speed  float64
	paused bool

	hub      *hub
	done     <-chan struct{}
	upgrader websocket.Upgrader
}

// New creates a server for the given project directory. speed is the
// initial ratio of simulated to wall-clock time. A nil logger uses
// slog.Default().
func New(projectPath string, port int, speed float64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		projectPath: projectPath,
		port:        port,
		logger:      logger,
		speed:       lo.Clamp(speed, minSpeed, maxSpeed),
		hub:         newHub(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Load reads and validates the project and builds the simulation. A spec
// with schema or layout errors is refused.
func (s *Server) Load() error {
	st, err := spec.LoadProject(s.projectPath)
	if err != nil {
		return err
	}
	report := validation.ValidateSchema(st)
	if err := report.Err(); err != nil {
		return err
	}

	sm, err := sim.New(st, s.logger)
	if err != nil {
		return err
	}
	grid := sm.Planner().Grid()
	report.Merge(routing.CheckLayout(grid, st))
	if err := report.Err(); err != nil {
		return err
	}

	s.spec = st
	s.specReport = report
	s.layout = scene2d.Assemble2D(st, grid)
	s.sim = sm
	s.collector = analytics.For(sm, sampleEvery)
	s.setFrame(scene.Capture(s.collector.RunID, sm))

	s.logger.Info("project loaded",
		"project", s.projectPath,
		"store", st.Name,
		"run_id", s.collector.RunID,
		"warnings", len(report.Warnings))
	return nil
}

// Start loads the project, starts the simulation loop and serves HTTP until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Load(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.startHub(ctx)
	go s.loop(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		s.shutdown(srv, shutdownTimeout)
	}()

	s.logger.Info("storesim server starting",
		"url", fmt.Sprintf("http://localhost%s", srv.Addr),
		"speed", s.Speed())
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown stops srv, giving open requests up to timeout to finish.
func (s *Server) shutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("shutting down http server", "err", err)
	}
}

func (s *Server) startHub(ctx context.Context) {
	s.done = ctx.Done()
	go s.hub.run(ctx)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/layout", s.handleLayout)
	mux.HandleFunc("GET /api/queue", s.handleQueue)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/validation", s.handleValidation)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/control", s.handleControl)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	mux.HandleFunc("GET /", s.handleIndex)

	return mux
}

// Speed returns the current ratio of simulated to wall-clock time.
func (s *Server) Speed() float64 {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	return s.speed
}

// SetSpeed changes the speed multiplier, clamped to a usable range.
func (s *Server) SetSpeed(v float64) {
	s.ctlMu.Lock()
	s.speed = lo.Clamp(v, minSpeed, maxSpeed)
	s.ctlMu.Unlock()
}

// SetPaused stops or resumes the simulation loop.
func (s *Server) SetPaused(p bool) {
	s.ctlMu.Lock()
	s.paused = p
	s.ctlMu.Unlock()
}

func (s *Server) control() (float64, bool) {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	return s.speed, s.paused
}

// applyAction handles a control message from HTTP or the websocket.
func (s *Server) applyAction(env Envelope) error {
	switch env.Type {
	case ActionSetSpeed:
		var p SpeedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decoding speed: %w", err)
		}
		if p.Speed <= 0 {
			return fmt.Errorf("speed must be positive, got %v", p.Speed)
		}
		s.SetSpeed(p.Speed)
	case ActionPause:
		s.SetPaused(true)
	case ActionResume:
		s.SetPaused(false)
	default:
		return fmt.Errorf("unknown action %q", env.Type)
	}
	s.logger.Debug("control", "action", env.Type, "speed", s.Speed())
	return nil
}

// loop advances the simulation in step with the wall clock and publishes a
// frame every frameInterval.
func (s *Server) loop(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	budget := 0.0
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now

			speed, paused := s.control()
			if paused {
				budget = 0
				continue
			}
			budget += elapsed * speed
			n := min(int(budget/s.spec.DT), maxTicksPerFrame)
			budget -= float64(n) * s.spec.DT
			if n == maxTicksPerFrame {
				budget = 0
			}
			if n > 0 {
				s.Step(n)
			}
		}
	}
}

// Step advances the simulation by up to n ticks, stopping at the store's step
// count, and publishes the resulting frame. It reports whether any tick ran.
func (s *Server) Step(n int) bool {
	s.simMu.Lock()
	if s.sim == nil || s.finished {
		s.simMu.Unlock()
		return false
	}
	limit := s.spec.Steps
	for i := 0; i < n; i++ {
		if limit > 0 && s.sim.TickCount() >= limit {
			break
		}
		s.sim.Tick()
	}
	frame := scene.Capture(s.collector.RunID, s.sim)
	var sum *analytics.Summary
	if limit > 0 && s.sim.TickCount() >= limit {
		s.finished = true
		sum, _ = analytics.Summarize(s.collector, s.sim)
		s.logger.Info("run finished",
			"run_id", sum.RunID,
			"ticks", sum.Ticks,
			"spawned", sum.Spawned,
			"exited", sum.Exited)
	}
	s.simMu.Unlock()

	s.setFrame(frame)
	s.broadcast(EventFrame, frame)
	if sum != nil {
		s.broadcast(EventSummary, sum)
	}
	return true
}

func (s *Server) setFrame(f *scene.Frame) {
	s.frameMu.Lock()
	s.frame = f
	s.frameMu.Unlock()
}

// Frame returns the latest published frame, or nil before Load.
func (s *Server) Frame() *scene.Frame {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frame
}

func (s *Server) broadcast(kind string, v any) {
	if s.done == nil {
		return
	}
	msg, err := envelope(kind, v)
	if err != nil {
		s.logger.Error("encoding feed message", "type", kind, "err", err)
		return
	}
	if !s.hub.publish(msg) {
		s.logger.Debug("feed backlog full, frame dropped", "type", kind)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>storesim</title></head>
<body style="margin:0;background:#111;color:#fff;font-family:system-ui;display:flex;align-items:center;justify-content:center;height:100vh">
<div style="text-align:center">
<h1>storesim</h1>
<p>Connect a viewer to <code>/api/ws</code>, or poll <code>/api/frame</code> and <code>/api/layout</code>.</p>
</div>
</body></html>`)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	f := s.Frame()
	if f == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleLayout(w http.ResponseWriter, _ *http.Request) {
	if s.layout == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	s.writeJSON(w, http.StatusOK, s.layout)
}

// queueView is the checkout slice of a frame.
type queueView struct {
	Time     float64              `json:"time"`
	Cashiers []scene.CashierState `json:"cashiers"`
	Queue    []int                `json:"queue"`
	Busy     int                  `json:"busy"`
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	f := s.Frame()
	if f == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	busy := lo.CountBy(f.Cashiers, func(c scene.CashierState) bool {
		return c.Serving >= 0 || c.Expecting >= 0
	})
	s.writeJSON(w, http.StatusOK, queueView{
		Time:     f.Metadata.Time,
		Cashiers: f.Cashiers,
		Queue:    f.Queue,
		Busy:     busy,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	if s.spec == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	s.writeJSON(w, http.StatusOK, s.spec)
}

func (s *Server) handleValidation(w http.ResponseWriter, _ *http.Request) {
	if s.specReport == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	report := validation.NewReport()
	report.Merge(s.specReport)

	s.simMu.Lock()
	_, runReport := analytics.Summarize(s.collector, s.sim)
	s.simMu.Unlock()

	report.Merge(runReport)
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	if s.sim == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	s.simMu.Lock()
	sum, _ := analytics.Summarize(s.collector, s.sim)
	s.simMu.Unlock()
	s.writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if err := s.applyAction(env); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	speed, paused := s.control()
	s.writeJSON(w, http.StatusOK, map[string]any{"speed": speed, "paused": paused})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.done == nil || s.layout == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotLoaded)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	// Prime the viewer before the hub can write to or close c.send.
	if msg, err := envelope(EventLayout, s.layout); err == nil {
		c.send <- msg
	}
	if f := s.Frame(); f != nil {
		if msg, err := envelope(EventFrame, f); err == nil {
			c.send <- msg
		}
	}

	select {
	case s.hub.register <- c:
	case <-s.done:
		conn.Close()
		return
	}
	s.logger.Debug("viewer connected", "remote", r.RemoteAddr)

	go c.writer()
	go s.reader(c)
}

// reader applies control messages from a viewer until the connection drops.
func (s *Server) reader(c *client) {
	defer func() {
		select {
		case s.hub.unregister <- c:
		case <-s.done:
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if err := s.applyAction(env); err != nil {
			s.logger.Debug("ignoring viewer message", "err", err)
		}
	}
}
