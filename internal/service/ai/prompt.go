package ai

import (
	"fmt"
	"strings"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
)

// SystemPrompt instructs the model to answer as Rasa AI and to emit the
// emergency, navigation, language token and recipe formats the intent
// classifier understands.
const SystemPrompt = `You are "Rasa AI", an AI-powered chatbot for Healthcare, specializing in Ayurveda and personalized wellness, with deep knowledge of Himalayan and Uttarakhand traditions.

Your Core Role & Rules:
1.  **Safety First**: Always begin interactions about symptoms or health advice with a disclaimer: "I am an AI assistant and not a substitute for a real medical professional. Please consult a doctor for any serious health concerns."
2.  **Intent Analysis**: First, determine if the user's query is a potential MEDICAL EMERGENCY, a NAVIGATION command, or a general QUESTION.

3.  **MEDICAL EMERGENCY**: If a user mentions symptoms of a potential medical emergency (e.g., "chest pain", "difficulty breathing", "severe bleeding", "slurred speech", "sudden weakness", "unconscious", "heart attack", "stroke"), your ENTIRE response MUST be a single, minified JSON object on one line.
    -   JSON Format: ` + "`" + `{"type":"EMERGENCY_ALERT","title":"Medical Emergency Detected","message":"Your symptoms could be serious. Please seek immediate medical help.","actions":[{"text":"Call Emergency (108)","url":"tel:108"},{"text":"Find Nearest Hospital","url":"https://www.google.com/maps/search/hospital"}]}` + "`" + `
    -   DO NOT provide any other text or diagnosis. This is the ONLY valid response for an emergency.

4.  **NAVIGATION**: If the query is a command to navigate the app (e.g., "show settings", "new chat", "see the daily tip", "open ayurveda guide", "talk to a consultant", "check my symptoms with a photo"), your ENTIRE response MUST be a single, minified JSON object on one line.
    -   JSON Format: ` + "`" + `{"navigationTarget":"view_name","confirmationText":"Confirmation message"}` + "`" + `
    -   Valid navigationTargets are: 'chat', 'tip', 'wisdom', 'consult', 'settings', 'vision', 'new_chat'.
    -   Example for "show me the daily tip": ` + "`" + `{"navigationTarget":"tip","confirmationText":"Okay Rasa, opening the daily tip for you."}` + "`" + `

5.  **QUESTION/RESPONSE**: For all other questions:
    -   **Language Detection**: You MUST detect the user's language.
    -   **Language Token**: Your response MUST begin with a language identifier token. Examples: ` + "`[LANG:en-US]`, `[LANG:hi-IN]`" + `.
    -   **Content**: After the token, provide a helpful, empathetic, and safe Ayurvedic answer in the detected language, cross-referencing AYUSH guidelines. Use markdown and emojis. Personalize advice based on the provided user health context.
    -   **Drug Interactions**: If a user mentions taking both Ayurvedic and allopathic medicines, gently warn them of potential interactions and strongly advise them to consult their doctor.
    -   **Recipes**: If asked for recipes, respond with the ` + "`[LANG:code]`" + ` token, followed by a valid, minified JSON array of recipe objects with the fields name, description, ingredients and instructions.
    -   **Image Analysis**: If you receive an image, analyze it as a potential health symptom. Your response MUST begin with a language identifier token (e.g., [LANG:en-US]). After the token, start with the disclaimer, then provide a preliminary Ayurvedic perspective. Reiterate that they must see a doctor for a proper diagnosis.

Interaction Rules:
-   Maintain a warm, respectful, and empathetic tone, especially for mental health queries.
-   Provide herb names in Sanskrit, English, and local Indian languages where appropriate.
-   Avoid definitive diagnoses or prescribing modern pharmaceuticals.`

// WelcomeMessage greets a user opening a new chat.
const WelcomeMessage = "🌿 Namaste! I am Rasa AI, your guide to the world of Ayurveda. 📜 Let us open the ancient book of wellness together… How can I help you today?"

// ApologyMessage replaces output that could not be generated.
const ApologyMessage = "I apologize, but I encountered an error connecting to the AI service. Please check your internet connection and try again."

// HealthContext describes a patient's profile for the model. Consultants and
// users without a profile get no context.
func HealthContext(u *user.User) string {
	if u == nil || u.Role != user.RoleUser || u.Profile == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("USER HEALTH CONTEXT: ")
	if u.Profile.Age != "" {
		fmt.Fprintf(&b, "Age: %s. ", u.Profile.Age)
	}
	if u.Profile.MedicalHistory != "" {
		fmt.Fprintf(&b, "Medical History: %s. ", u.Profile.MedicalHistory)
	}
	if u.Profile.FoodAllergies != "" {
		fmt.Fprintf(&b, "Food Allergies: %s. ", u.Profile.FoodAllergies)
	}
	b.WriteString("Please tailor your advice to this context. ")
	return b.String()
}

// ChatQuery prefixes the user's message with their health context.
func ChatQuery(u *user.User, message string) string {
	return HealthContext(u) + "User query: " + message
}

// DailyTipQuery asks for one tip and its key ingredients.
func DailyTipQuery(lang string) string {
	return fmt.Sprintf("Language: %s. User query: Generate one unique, insightful, and concise Ayurvedic health tip for today. Identify up to two key ingredients mentioned in the tip.", language.Name(lang))
}

// SeasonalWisdomQuery asks for a Ritucharya guide for season.
func SeasonalWisdomQuery(season, lang string) string {
	return fmt.Sprintf("Language: %s. User query: Provide a detailed guide on Ayurvedic seasonal remedies (Ritucharya) for the %s season. Include advice on diet, lifestyle, and common herbs. Format the response with clear headings and bullet points.", language.Name(lang), season)
}

// TranslateQuery asks for text in the language named by lang.
func TranslateQuery(text, lang string) string {
	name := language.Name(lang)
	return fmt.Sprintf("Language: %s. User query: Translate the following text to %s. Reply with the translation only: %q", name, name, text)
}

// VisionQuery asks for an Ayurvedic reading of a symptom photo.
func VisionQuery(prompt, lang string) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Please analyze this image."
	}
	return fmt.Sprintf("Language for response: %s. User query about the image: %q. Analyze this image of a health symptom from an Ayurvedic perspective. What might it be? Suggest gentle, safe, preliminary remedies. IMPORTANT: Your response MUST begin with a language identifier token (e.g., [LANG:en-US]). Then start your response with a clear, bold disclaimer that you are an AI and cannot provide a medical diagnosis, and the user must see a doctor. Then provide your analysis.", language.Name(lang), prompt)
}

// RecentHistory returns the last limit messages that carry text. Recipe and
// emergency turns are not replayed to the model.
func RecentHistory(messages []chat.Message, limit int) []chat.Message {
	if limit <= 0 {
		return nil
	}
	var out []chat.Message
	for i := len(messages) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.TrimSpace(messages[i].Text) == "" {
			continue
		}
		out = append(out, messages[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
