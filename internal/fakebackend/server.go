// ABOUTME: Scripted chat backend for local runs and integration tests
// ABOUTME: Answers WebSocket queries with progress and final frames and serves voice task status

package fakebackend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/nexus-chat/internal/auth"
	"github.com/2389/nexus-chat/internal/protocol"
)

// Defaults for Config.
const (
	DefaultProcessingPolls = 2
	DefaultErrorTrigger    = "error"
	DefaultVoiceFailure    = "novoice"

	writeWait = 5 * time.Second
)

// Detail texts sent by the backend.
const (
	ReceivedDetail = "ได้รับคำสั่งแล้ว กำลังประมวลผล..."
	FatalDetail    = "เกิดข้อผิดพลาดร้ายแรงระหว่างการประมวลผล"
)

// Config controls the scripted behaviour.
type Config struct {
	// ProcessingPolls is how many status requests report "processing"
	// before a voice task turns "done".
	ProcessingPolls int

	// StepDelay is the pause between progress frames.
	StepDelay time.Duration

	// ErrorTrigger makes a query containing it end in an error frame.
	ErrorTrigger string

	// VoiceFailure makes a query containing it produce a failed voice task.
	VoiceFailure string

	// Verifier, when set, requires a bearer token on the WebSocket handshake.
	Verifier auth.Verifier

	// NewTaskID generates voice task ids. Defaults to uuid.NewString.
	NewTaskID func() string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ProcessingPolls < 0 {
		c.ProcessingPolls = 0
	}
	if c.ErrorTrigger == "" {
		c.ErrorTrigger = DefaultErrorTrigger
	}
	if c.VoiceFailure == "" {
		c.VoiceFailure = DefaultVoiceFailure
	}
	if c.NewTaskID == nil {
		c.NewTaskID = uuid.NewString
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type voiceTask struct {
	polls  int
	status string
	url    string
	err    string
}

// Server is the fake backend. Create it with New and mount Handler.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	tasks map[string]*voiceTask

	wg sync.WaitGroup
}

// New creates a Server.
func New(cfg Config) *Server {
	cfg.defaults()
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "fakebackend"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		tasks: make(map[string]*voiceTask),
	}
}

// Handler routes /ws/{user_id}, /audio_status/{task_id}, /static/audio/
// and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var ws http.Handler = http.HandlerFunc(s.handleWS)
	if s.cfg.Verifier != nil {
		ws = auth.HTTPAuthMiddleware(s.cfg.Verifier)(ws)
	}
	mux.Handle("/ws/", ws)
	mux.HandleFunc("/audio_status/", s.handleAudioStatus)
	mux.HandleFunc("/static/audio/", s.handleClip)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Wait blocks until every WebSocket session has ended.
func (s *Server) Wait() {
	s.wg.Wait()
}

// PendingTasks returns the number of voice tasks not yet collected.
func (s *Server) PendingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if userID == "" || strings.Contains(userID, "/") {
		http.NotFound(w, r)
		return
	}
	if authed, ok := auth.UserFromContext(r.Context()); ok && authed != userID {
		http.Error(w, `{"error":"token does not match user"}`, http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	logger := s.logger.With("user_id", userID)
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			} else {
				logger.Info("websocket closed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		query := string(data)
		logger.Debug("query received", "query", query)
		if err := s.answer(ctx, conn, query); err != nil {
			logger.Warn("reply failed", "error", err)
			return
		}
	}
}

// answer streams the scripted reply for one query.
func (s *Server) answer(ctx context.Context, conn *websocket.Conn, query string) error {
	if err := s.write(conn, protocol.NewProgress("FENG", "RECEIVED", ReceivedDetail)); err != nil {
		return err
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, s.cfg.ErrorTrigger) {
		return s.write(conn, protocol.NewError(FatalDetail))
	}

	steps := []struct{ agent, status, detail string }{
		{"PLANNER", "ROUTING", "เลือกผู้เชี่ยวชาญที่เหมาะสม"},
		{"GENERAL_HANDLER", "PROCESSING", "กำลังเรียบเรียงความคิด"},
		{"FORMATTER", "FORMATTING", "จัดรูปแบบคำตอบ"},
	}
	for _, step := range steps {
		if !s.pause(ctx) {
			return ctx.Err()
		}
		if err := s.write(conn, protocol.NewProgress(step.agent, step.status, step.detail)); err != nil {
			return err
		}
	}

	final := protocol.FinalResponse{
		Answer:    "**ได้รับคำถาม:** " + query + "\n\n- ตอบโดยเซิร์ฟเวอร์จำลอง\n- `nexus-chat`",
		AgentUsed: "GENERAL_HANDLER",
	}
	if strings.Contains(query, "รูป") || strings.Contains(lower, "image") {
		final.Image = &protocol.ImageRef{
			URL:          "https://images.unsplash.com/photo-1464822759023-fed622ff2c3b",
			Description:  "mountain sunrise",
			Photographer: "Kalen Emsley",
			ProfileURL:   "https://unsplash.com/@kalenemsley",
		}
	}
	final.VoiceTaskID = s.addTask(strings.Contains(lower, s.cfg.VoiceFailure))

	return s.write(conn, protocol.NewFinal(final))
}

func (s *Server) pause(ctx context.Context) bool {
	if s.cfg.StepDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.cfg.StepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Server) write(conn *websocket.Conn, f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) addTask(fail bool) string {
	id := s.cfg.NewTaskID()
	t := &voiceTask{status: "processing"}
	if fail {
		t.err = "TTS agent not found or synthesis failed"
	} else {
		t.url = "/static/audio/" + id + ".wav"
	}

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()
	return id
}

func (s *Server) handleAudioStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/audio_status/")

	s.mu.Lock()
	t, ok := s.tasks[id]
	var body map[string]string
	if ok {
		if t.polls < s.cfg.ProcessingPolls {
			t.polls++
			body = map[string]string{"status": "processing"}
		} else {
			// Finished tasks are reported once, then forgotten.
			delete(s.tasks, id)
			if t.err != "" {
				body = map[string]string{"status": "failed", "error": t.err}
			} else {
				body = map[string]string{"status": "done", "url": t.url}
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Task not found"})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, ".wav") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(silentClip)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
