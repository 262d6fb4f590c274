package chat

import "github.com/rasa-ai/rasa/backend/internal/model/chat"

// The helpers below hold the update rules shared by every Store
// implementation. Each returns false when id is unknown.

func appendUnique(history []chat.Message, msg chat.Message) ([]chat.Message, bool) {
	for _, existing := range history {
		if existing.ID == msg.ID {
			return history, false
		}
	}
	return append(history, msg), true
}

func complete(history []chat.Message, id int64, text, lang string) bool {
	return update(history, id, func(m *chat.Message) {
		m.Text = text
		m.Lang = lang
		m.Recipes = nil
		m.Emergency = nil
	})
}

func saveRecipes(history []chat.Message, id int64, recipes []chat.Recipe) bool {
	return update(history, id, func(m *chat.Message) {
		m.Recipes = append([]chat.Recipe(nil), recipes...)
		m.Text = ""
		m.Emergency = nil
	})
}

func saveEmergency(history []chat.Message, id int64, payload chat.EmergencyPayload) bool {
	return update(history, id, func(m *chat.Message) {
		p := payload
		m.Emergency = &p
		m.Text = ""
		m.Recipes = nil
	})
}

func update(history []chat.Message, id int64, apply func(*chat.Message)) bool {
	for i := range history {
		if history[i].ID == id {
			apply(&history[i])
			return true
		}
	}
	return false
}
