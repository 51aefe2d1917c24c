package domain

import "context"

// DraftRepository persists the text and option fields of a draft per session. Images are
// never persisted.
type DraftRepository interface {
	Load(ctx context.Context, sessionID string) (*Draft, error)
	Save(ctx context.Context, sessionID string, draft Draft) error
	Delete(ctx context.Context, sessionID string) error
}
