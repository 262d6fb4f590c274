package intent

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	languageToken = regexp.MustCompile(`\[LANG:([\w-]+)\]`)
	recipeRequest = regexp.MustCompile(`(?i)\brecipes?|\bmake\b|\bcook\b|\bprepare\b|\bingredients for\b`)
)

// ExtractLanguage finds the first [LANG:code] token in text. It returns the
// code and the text with the token removed and leading whitespace trimmed.
func ExtractLanguage(text string) (lang, rest string, ok bool) {
	loc := languageToken.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", text, false
	}
	rest = text[:loc[0]] + text[loc[1]:]
	return text[loc[2]:loc[3]], strings.TrimLeftFunc(rest, unicode.IsSpace), true
}

// IsRecipeRequest reports whether a user message asks for recipes.
func IsRecipeRequest(message string) bool {
	return recipeRequest.MatchString(message)
}
