package ports

import (
	"context"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// MessageStore persists chat messages.
type MessageStore interface {
	// Save stores msg and returns it with its assigned ID.
	Save(ctx context.Context, msg domain.Message) (domain.Message, error)
}

// ChatService validates and persists a message on behalf of an author.
type ChatService interface {
	Post(ctx context.Context, author domain.Identity, text, room string) (domain.Message, error)
}
