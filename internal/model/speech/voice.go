package speech

// Voice is an installed voice reported by the client engine.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`    // en-US, hi-IN, etc.
	Default bool   `json:"default"` // engine default for its locale
}

// Modulation is the speaking rate and pitch.
type Modulation struct {
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// Utterance is one synthesis request.
type Utterance struct {
	ID        int64   `json:"id"`
	MessageID int64   `json:"messageId"`
	Text      string  `json:"text"`
	Lang      string  `json:"lang"`
	Voice     *Voice  `json:"voice,omitempty"`
	Rate      float64 `json:"rate"`
	Pitch     float64 `json:"pitch"`
}
