package voice

// WakeWordState drives the listening overlay on the client.
type WakeWordState string

const (
	StateIdle      WakeWordState = "IDLE"
	StateAwake     WakeWordState = "AWAKE"
	StateListening WakeWordState = "LISTENING"
)

// Command is a recognised utterance spoken after the wake phrase. It is
// consumed exactly once by the chat pipeline.
type Command struct {
	Text string `json:"command"`
	ID   int64  `json:"id"`
}
