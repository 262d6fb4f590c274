package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	speechModel "github.com/rasa-ai/rasa/backend/internal/model/speech"
	voiceService "github.com/rasa-ai/rasa/backend/internal/service/voice"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var errConnClosed = errors.New("websocket connection closed")

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn serialises writes; gorilla/websocket supports one writer at a time.
type wsConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// recognizerCommand asks the client to start or stop a recognition session.
type recognizerCommand struct {
	Action string `json:"action"`
	voiceService.Session
}

// remoteRecognizer drives the recognition engine running in the client.
type remoteRecognizer struct {
	conn *wsConn
}

func (r *remoteRecognizer) Start(_ context.Context, s voiceService.Session) error {
	return r.conn.send("recognizer", recognizerCommand{Action: "start", Session: s})
}

func (r *remoteRecognizer) Stop(_ context.Context, generation int64) error {
	return r.conn.send("recognizer", recognizerCommand{
		Action:  "stop",
		Session: voiceService.Session{Generation: generation},
	})
}

// remoteEngine drives the synthesis engine running in the client. Voices
// are whatever the client last reported.
type remoteEngine struct {
	conn *wsConn

	mu     sync.RWMutex
	voices []speechModel.Voice
}

func (e *remoteEngine) setVoices(voices []speechModel.Voice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voices = append([]speechModel.Voice(nil), voices...)
}

func (e *remoteEngine) Voices() []speechModel.Voice {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.voices
}

func (e *remoteEngine) Speak(_ context.Context, u speechModel.Utterance) error {
	return e.conn.send("speak", map[string]any{"utterance": u})
}

func (e *remoteEngine) Cancel(context.Context) error {
	return e.conn.send("speech_cancel", nil)
}
