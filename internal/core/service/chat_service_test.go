package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

type stubMessageStore struct {
	saveErr error
	saved   []domain.Message
}

func (s *stubMessageStore) Save(_ context.Context, msg domain.Message) (domain.Message, error) {
	if s.saveErr != nil {
		return domain.Message{}, s.saveErr
	}
	msg.ID = "msg-1"
	s.saved = append(s.saved, msg)
	return msg, nil
}

func TestChatService_Post_PersistsMessage(t *testing.T) {
	store := &stubMessageStore{}
	svc := NewChatService(store, zerolog.Nop())

	msg, err := svc.Post(context.Background(), domain.Identity{SubjectID: "u1"}, "hi", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "msg-1" || msg.Room != domain.DefaultRoom || msg.AuthorSubjectID != "u1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(store.saved))
	}
}

func TestChatService_Post_EmptyTextNotStored(t *testing.T) {
	store := &stubMessageStore{}
	svc := NewChatService(store, zerolog.Nop())

	_, err := svc.Post(context.Background(), domain.Identity{SubjectID: "u1"}, "", "general")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(store.saved))
	}
}

func TestChatService_Post_StoreError(t *testing.T) {
	boom := errors.New("write concern timeout")
	svc := NewChatService(&stubMessageStore{saveErr: boom}, zerolog.Nop())

	if _, err := svc.Post(context.Background(), domain.Identity{SubjectID: "u1"}, "hi", "general"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
