package chat

import "context"

// Store persists per-user chat history. Updates addressed to an unknown
// message id are no-ops.
type Store interface {
	// Append stores msg unless a message with the same id already exists.
	Append(ctx context.Context, userID string, msg Message) error
	// Complete sets the text and language of a message and clears any recipes.
	Complete(ctx context.Context, userID string, id int64, text, lang string) error
	// SaveRecipes sets the recipes of a message and clears its text.
	SaveRecipes(ctx context.Context, userID string, id int64, recipes []Recipe) error
	// SaveEmergency attaches an emergency payload and clears text and recipes.
	SaveEmergency(ctx context.Context, userID string, id int64, payload EmergencyPayload) error
	History(ctx context.Context, userID string) ([]Message, error)
	Clear(ctx context.Context, userID string) error
}
