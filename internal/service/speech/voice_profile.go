package speech

import (
	"strings"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	model "github.com/rasa-ai/rasa/backend/internal/model/speech"
)

// modulationTable holds rate and pitch per language; unlisted languages use 1/1.
var modulationTable = map[string]model.Modulation{
	"en-us":  {Rate: 1.0, Pitch: 1.0},
	"hi-in":  {Rate: 1.05, Pitch: 1.05},
	"gmj-in": {Rate: 1.0, Pitch: 1.08},
	"kfy-in": {Rate: 1.02, Pitch: 1.06},
	"bn-in":  {Rate: 0.95, Pitch: 1.1},
	"ta-in":  {Rate: 1.1, Pitch: 1.0},
	"te-in":  {Rate: 1.0, Pitch: 1.05},
	"gu-in":  {Rate: 1.0, Pitch: 1.02},
	"kn-in":  {Rate: 1.1, Pitch: 1.0},
	"ml-in":  {Rate: 0.98, Pitch: 1.05},
	"mr-in":  {Rate: 1.0, Pitch: 1.0},
}

// ModulationFor returns the rate and pitch for lang. The lookup uses the
// original code, so gmj-IN keeps its own pitch while speaking with a hi-IN voice.
func ModulationFor(lang string) model.Modulation {
	if m, ok := modulationTable[normalize(lang)]; ok {
		return m
	}
	return model.Modulation{Rate: 1, Pitch: 1}
}

// SelectVoice picks the installed voice that best matches lang and reports
// false when none matches.
//
// Scores: exact code 5, remapped code 4, base language 3, remapped base 2,
// plus 1 for the engine default. Ties keep the earlier voice.
func SelectVoice(voices []model.Voice, lang string) (model.Voice, bool) {
	target := normalize(lang)
	fallback := normalize(language.EngineCode(lang))
	targetBase := language.Base(target)
	fallbackBase := language.Base(fallback)

	best, bestScore := -1, 0
	for i, v := range voices {
		code := normalize(v.Lang)
		if code == "" {
			continue
		}

		score := 0
		switch {
		case code == target:
			score = 5
		case code == fallback:
			score = 4
		case language.Base(code) == targetBase:
			score = 3
		case language.Base(code) == fallbackBase:
			score = 2
		}
		if score == 0 {
			continue
		}
		if v.Default {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return model.Voice{}, false
	}
	return voices[best], true
}

func normalize(code string) string {
	return strings.ToLower(language.Normalize(code))
}
