package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

type stubChat struct {
	mu    sync.Mutex
	saved []domain.Message
	err   error
}

func (s *stubChat) Post(_ context.Context, author domain.Identity, text, room string) (domain.Message, error) {
	msg, err := domain.NewMessage(author.SubjectID, text, room, time.Now())
	if err != nil {
		return domain.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Message{}, s.err
	}
	msg.ID = fmt.Sprintf("m%d", len(s.saved)+1)
	s.saved = append(s.saved, msg)
	return msg, nil
}

func (s *stubChat) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type stubVerifier struct {
	tokens map[string]domain.Claims
	err    error
	calls  int
	mu     sync.Mutex
}

func (s *stubVerifier) Verify(_ context.Context, token string) (domain.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.Claims{}, s.err
	}
	c, ok := s.tokens[token]
	if !ok {
		return domain.Claims{}, domain.ErrInvalidToken
	}
	return c, nil
}

type stubResolver struct {
	inactive map[string]bool
	err      error
	calls    int
	mu       sync.Mutex
}

func (s *stubResolver) Resolve(_ context.Context, c domain.Claims) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.Identity{}, s.err
	}
	return domain.Identity{
		SubjectID: c.SubjectID,
		Email:     c.Email,
		Role:      domain.RoleReadOnly,
		IsActive:  !s.inactive[c.SubjectID],
	}, nil
}

func newTestBroker(t *testing.T, chat *stubChat) *RoomBroker {
	t.Helper()
	d := NewDispatcher(4, zerolog.Nop())
	t.Cleanup(d.Stop)
	return NewRoomBroker(chat, d, zerolog.Nop())
}

func newTestClient(b *RoomBroker, subject string, buffer int) *Client {
	c := NewClient(Session{
		ConnectionID: "conn-" + subject,
		Identity:     domain.Identity{SubjectID: subject, IsActive: true},
	}, buffer)
	b.Register(c)
	return c
}

// drain returns every frame currently queued for c.
func drain(t *testing.T, c *Client) []serverFrame {
	t.Helper()
	var out []serverFrame
	for {
		select {
		case raw := <-c.Outbound():
			var f serverFrame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []serverFrame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}
