package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	speechModel "github.com/rasa-ai/rasa/backend/internal/model/speech"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
	voiceModel "github.com/rasa-ai/rasa/backend/internal/model/voice"
	"github.com/rasa-ai/rasa/backend/internal/observability"
	"github.com/rasa-ai/rasa/backend/internal/service/assistant"
	"github.com/rasa-ai/rasa/backend/internal/service/speech"
	voiceService "github.com/rasa-ai/rasa/backend/internal/service/voice"
)

const jobQueueSize = 8

// WebSocketHandler serves voice sessions. Recognition and synthesis run in
// the client; the server drives them with messages.
type WebSocketHandler struct {
	pipeline *assistant.Pipeline
	users    user.Store
	phrases  []string
	clock    *chat.IDClock
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(pipeline *assistant.Pipeline, users user.Store, wakePhrases []string, clock *chat.IDClock, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		pipeline: pipeline,
		users:    users,
		phrases:  wakePhrases,
		clock:    clock,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws/{userID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type voicesMessage struct {
	Voices []speechModel.Voice `json:"voices"`
}

type speechEvent struct {
	UtteranceID int64  `json:"utteranceId"`
	Event       string `json:"event"`
	Error       string `json:"error,omitempty"`
}

type languageMessage struct {
	Lang string `json:"lang"`
}

type textMessage struct {
	Text string `json:"text"`
}

type toggleMessage struct {
	MessageID int64  `json:"messageId"`
	Text      string `json:"text"`
	Lang      string `json:"lang"`
}

// chatJob is one user turn waiting for the worker.
type chatJob struct {
	text   string
	lang   string
	source string
}

type connectionState struct {
	userID     string
	conn       *wsConn
	engine     *remoteEngine
	controller *voiceService.Controller
	speaker    *speech.Adapter
	jobs       chan chatJob
	log        *zap.Logger

	mu   sync.Mutex
	lang string
}

func (s *connectionState) language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

func (s *connectionState) setLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
}

// enqueue hands a turn to the worker without blocking the read loop.
func (s *connectionState) enqueue(job chatJob) {
	select {
	case s.jobs <- job:
	default:
		observability.VoiceCommandsTotal.WithLabelValues("dropped").Inc()
		s.log.Warn("chat queue full, dropping turn", zap.String("source", job.source))
		_ = s.conn.send("error", map[string]string{"message": "still answering the previous message"})
	}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}
	if h.users != nil {
		if _, ok := h.users.FindByID(userID); !ok {
			http.Error(w, user.ErrUserNotFound.Error(), http.StatusNotFound)
			return
		}
	}
	lang := language.OrDefault(language.Normalize(r.URL.Query().Get("lang")))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := h.log.With(zap.String("user_id", userID), zap.String("session_id", sessionID))
	log.Info("voice session opened", zap.String("lang", lang))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	state := h.newConnectionState(userID, lang, &wsConn{conn: conn}, log)
	defer state.conn.close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.pingLoop(ctx, state.conn)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.worker(ctx, state)
	}()
	defer func() {
		cancel()
		state.controller.Close(context.Background())
		close(state.jobs)
		wg.Wait()
		log.Info("voice session closed")
	}()

	h.sendInfo(state.conn, "connected", map[string]any{
		"sessionId":   sessionID,
		"userId":      userID,
		"lang":        lang,
		"state":       state.controller.State(),
		"wakePhrases": h.phrases,
	})

	// wake word detection runs from the start; "activate" re-enables it after
	// a permission denial
	if err := state.controller.Activate(ctx); err != nil {
		log.Warn("failed to start wake word detection", zap.Error(err))
	}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(ctx, state, &msg)
	}
}

func (h *WebSocketHandler) newConnectionState(userID, lang string, conn *wsConn, log *zap.Logger) *connectionState {
	state := &connectionState{
		userID: userID,
		conn:   conn,
		engine: &remoteEngine{conn: conn},
		jobs:   make(chan chatJob, jobQueueSize),
		log:    log,
		lang:   lang,
	}

	state.speaker = speech.NewAdapter(state.engine, log, speech.WithOnChange(func(messageID int64) {
		h.sendInfo(conn, "speaking", map[string]int64{"messageId": messageID})
	}))
	state.controller = voiceService.NewController(&remoteRecognizer{conn: conn}, voiceService.Options{
		Phrases:  h.phrases,
		Language: lang,
		OnCommand: func(cmd voiceModel.Command) {
			state.enqueue(chatJob{text: cmd.Text, lang: state.language(), source: "voice"})
		},
		OnState: func(s voiceModel.WakeWordState) {
			h.sendInfo(conn, "wake_state", map[string]voiceModel.WakeWordState{"state": s})
		},
		Clock:  h.clock,
		Logger: log,
	})
	return state
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "voices":
		var payload voicesMessage
		if !h.decode(state, msg, &payload) {
			return
		}
		state.engine.setVoices(payload.Voices)

	case "recognizer":
		var ev voiceService.Event
		if !h.decode(state, msg, &ev) {
			return
		}
		state.controller.HandleEvent(ctx, ev)

	case "speech":
		var ev speechEvent
		if !h.decode(state, msg, &ev) {
			return
		}
		if ev.Event == "end" || ev.Event == "error" {
			if ev.Error != "" && ev.Error != "interrupted" && ev.Error != "canceled" {
				state.log.Warn("speech synthesis error", zap.String("error", ev.Error))
			}
			state.speaker.Finished(ev.UtteranceID)
		}

	case "language":
		var payload languageMessage
		if !h.decode(state, msg, &payload) {
			return
		}
		lang := language.OrDefault(language.Normalize(payload.Lang))
		state.setLanguage(lang)
		if err := state.controller.SetLanguage(ctx, lang); err != nil {
			state.log.Warn("failed to switch recognizer language", zap.Error(err))
		}

	case "activate":
		if err := state.controller.Activate(ctx); err != nil {
			h.sendError(state.conn, "failed to start wake word detection")
		}

	case "text":
		var payload textMessage
		if !h.decode(state, msg, &payload) {
			return
		}
		if payload.Text == "" {
			return
		}
		state.enqueue(chatJob{text: payload.Text, lang: state.language(), source: "text"})

	case "toggle_speech":
		var payload toggleMessage
		if !h.decode(state, msg, &payload) {
			return
		}
		lang := payload.Lang
		if lang == "" {
			lang = state.language()
		}
		if err := state.speaker.Toggle(ctx, payload.MessageID, payload.Text, lang); err != nil {
			state.log.Debug("toggle speech failed", zap.Error(err))
		}

	case "cancel_speech":
		if err := state.speaker.Cancel(ctx); err != nil {
			state.log.Debug("cancel speech failed", zap.Error(err))
		}

	default:
		h.sendError(state.conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) decode(state *connectionState, msg *inboundMessage, dst any) bool {
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		h.sendError(state.conn, "invalid "+msg.Type+" payload")
		return false
	}
	return true
}

// worker runs queued turns one at a time, so each voice command is answered
// exactly once and in order.
func (h *WebSocketHandler) worker(ctx context.Context, state *connectionState) {
	for job := range state.jobs {
		if ctx.Err() != nil {
			continue
		}
		sink := assistant.SinkFunc(func(ev assistant.Event) error {
			return state.conn.send("chat", ev)
		})
		_, err := h.pipeline.Handle(ctx, assistant.Request{
			UserID:   state.userID,
			Message:  job.text,
			Language: job.lang,
		}, sink, state.speaker)
		if err != nil && ctx.Err() == nil {
			state.log.Error("chat turn failed", zap.String("source", job.source), zap.Error(err))
			h.sendError(state.conn, err.Error())
		}
	}
}

func (h *WebSocketHandler) sendInfo(conn *wsConn, msgType string, data interface{}) {
	if err := conn.send(msgType, data); err != nil {
		h.log.Debug("websocket write failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *wsConn, message string) {
	h.sendInfo(conn, "error", map[string]string{"message": message})
}

// pingLoop keeps the connection alive.
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
