// Package language holds the locales the assistant speaks and the mapping of
// regional codes onto codes that speech engines understand.
package language

import "strings"

// Default is used when no language has been selected or detected.
const Default = "en-US"

// Language describes one selectable locale.
type Language struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	LocalName string `json:"localName"`
}

var supported = []Language{
	{Code: "en-US", Name: "English", LocalName: "English"},
	{Code: "hi-IN", Name: "Hindi", LocalName: "हिन्दी"},
	{Code: "gmj-IN", Name: "Garhwali", LocalName: "गढ़वाली"},
	{Code: "kfy-IN", Name: "Kumaoni", LocalName: "कुमाऊँनी"},
	{Code: "bn-IN", Name: "Bengali", LocalName: "বাংলা"},
	{Code: "te-IN", Name: "Telugu", LocalName: "తెలుగు"},
	{Code: "mr-IN", Name: "Marathi", LocalName: "मराठी"},
	{Code: "ta-IN", Name: "Tamil", LocalName: "தமிழ்"},
	{Code: "gu-IN", Name: "Gujarati", LocalName: "ગુજરાતી"},
	{Code: "kn-IN", Name: "Kannada", LocalName: "ಕನ್ನಡ"},
	{Code: "ml-IN", Name: "Malayalam", LocalName: "മലയാളം"},
	{Code: "pa-IN", Name: "Punjabi", LocalName: "ਪੰਜਾਬੀ"},
	{Code: "as-IN", Name: "Assamese", LocalName: "অসমীয়া"},
	{Code: "or-IN", Name: "Odia", LocalName: "ଓଡ଼ିଆ"},
	{Code: "ur-IN", Name: "Urdu", LocalName: "اردو"},
	{Code: "ne-IN", Name: "Nepali", LocalName: "नेपाली"},
}

// Regional languages without engine support, keyed by lower-cased code.
var engineFallback = map[string]string{
	"gmj-in": "hi-IN",
	"kfy-in": "hi-IN",
}

// Supported returns the selectable languages in display order.
func Supported() []Language {
	return append([]Language(nil), supported...)
}

// Lookup finds a language by code, ignoring case.
func Lookup(code string) (Language, bool) {
	normalized := Normalize(code)
	for _, l := range supported {
		if strings.EqualFold(l.Code, normalized) {
			return l, true
		}
	}
	return Language{}, false
}

// Name returns the English name of code, or "English" when unknown.
func Name(code string) string {
	if l, ok := Lookup(code); ok {
		return l.Name
	}
	return "English"
}

// EngineCode maps a code onto one the recognition and synthesis engines
// support. Unmapped codes pass through unchanged.
func EngineCode(code string) string {
	if mapped, ok := engineFallback[strings.ToLower(Normalize(code))]; ok {
		return mapped
	}
	return code
}

// Normalize trims code and replaces underscores with hyphens.
func Normalize(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
}

// Base returns the primary subtag of code, lower-cased ("hi" for "hi-IN").
func Base(code string) string {
	normalized := strings.ToLower(Normalize(code))
	if i := strings.IndexByte(normalized, '-'); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// OrDefault returns code, or Default when code is blank.
func OrDefault(code string) string {
	if strings.TrimSpace(code) == "" {
		return Default
	}
	return code
}
