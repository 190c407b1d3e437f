package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

type chatService struct {
	store ports.MessageStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewChatService returns a ChatService backed by store.
func NewChatService(store ports.MessageStore, log zerolog.Logger) ports.ChatService {
	return &chatService{
		store: store,
		log:   log.With().Str("component", "chat").Logger(),
		now:   time.Now,
	}
}

// Post validates and persists a message. Nothing is stored when validation
// fails.
func (s *chatService) Post(ctx context.Context, author domain.Identity, text, room string) (domain.Message, error) {
	msg, err := domain.NewMessage(author.SubjectID, text, room, s.now().UTC())
	if err != nil {
		return domain.Message{}, err
	}

	saved, err := s.store.Save(ctx, msg)
	if err != nil {
		s.log.Error().Err(err).Str("room", msg.Room).Str("author", author.SubjectID).Msg("failed to persist message")
		return domain.Message{}, fmt.Errorf("post message: %w", err)
	}

	s.log.Debug().Str("room", saved.Room).Str("author", author.SubjectID).Str("message_id", saved.ID).Msg("message persisted")
	return saved, nil
}
