package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

func TestBroker_SendDeliversToAllMembersIncludingSender(t *testing.T) {
	chat := &stubChat{}
	b := newTestBroker(t, chat)
	alice := newTestClient(b, "alice", 8)
	bob := newTestClient(b, "bob", 8)
	outsider := newTestClient(b, "carol", 8)

	for _, c := range []*Client{alice, bob} {
		_, err := b.Join(c, "sales")
		require.NoError(t, err)
	}
	_, err := b.Join(outsider, "support")
	require.NoError(t, err)

	msg, err := b.Send(context.Background(), alice, "  hello  ", "sales")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "alice", msg.AuthorSubjectID)
	assert.Equal(t, 1, chat.count())

	for _, c := range []*Client{alice, bob} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventNewMessage, frames[0].Event)
		data, _ := json.Marshal(frames[0].Data)
		assert.Contains(t, string(data), `"id":"m1"`)
	}
	assert.Empty(t, drain(t, outsider))
}

func TestBroker_FailedSendBroadcastsNothing(t *testing.T) {
	chat := &stubChat{err: domain.ErrDirectoryUnavailable}
	b := newTestBroker(t, chat)
	alice := newTestClient(b, "alice", 8)
	bob := newTestClient(b, "bob", 8)
	for _, c := range []*Client{alice, bob} {
		_, err := b.Join(c, "sales")
		require.NoError(t, err)
	}

	_, err := b.Send(context.Background(), alice, "hello", "sales")
	require.Error(t, err)
	assert.Empty(t, drain(t, alice))
	assert.Empty(t, drain(t, bob))
}

func TestBroker_EmptyTextRejected(t *testing.T) {
	chat := &stubChat{}
	b := newTestBroker(t, chat)
	alice := newTestClient(b, "alice", 8)
	_, err := b.Join(alice, "sales")
	require.NoError(t, err)

	_, err = b.Send(context.Background(), alice, "   ", "sales")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, chat.count())
	assert.Empty(t, drain(t, alice))
}

func TestBroker_SendWithoutRoomUsesGeneral(t *testing.T) {
	b := newTestBroker(t, &stubChat{})
	alice := newTestClient(b, "alice", 8)
	_, err := b.Join(alice, domain.DefaultRoom)
	require.NoError(t, err)

	msg, err := b.Send(context.Background(), alice, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRoom, msg.Room)
	assert.Len(t, drain(t, alice), 1)
}

func TestBroker_SenderOutsideRoomIsNotEchoed(t *testing.T) {
	b := newTestBroker(t, &stubChat{})
	alice := newTestClient(b, "alice", 8)
	bob := newTestClient(b, "bob", 8)
	_, err := b.Join(bob, "sales")
	require.NoError(t, err)

	_, err = b.Send(context.Background(), alice, "hi", "sales")
	require.NoError(t, err)
	assert.Empty(t, drain(t, alice))
	assert.Len(t, drain(t, bob), 1)
}

func TestBroker_TypingExcludesSender(t *testing.T) {
	chat := &stubChat{}
	b := newTestBroker(t, chat)
	alice := newTestClient(b, "alice", 8)
	bob := newTestClient(b, "bob", 8)
	carol := newTestClient(b, "carol", 8)
	for _, c := range []*Client{alice, bob, carol} {
		_, err := b.Join(c, "sales")
		require.NoError(t, err)
	}

	require.NoError(t, b.Typing(alice, "sales", true))

	assert.Empty(t, drain(t, alice))
	for _, c := range []*Client{bob, carol} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventTyping, frames[0].Event)
		data, _ := json.Marshal(frames[0].Data)
		assert.JSONEq(t, `{"user":"alice","room":"sales","isTyping":true}`, string(data))
	}
	assert.Zero(t, chat.count(), "typing is never stored")
}

func TestBroker_JoinIsIdempotentAndValidated(t *testing.T) {
	b := newTestBroker(t, &stubChat{})
	alice := newTestClient(b, "alice", 8)

	for i := 0; i < 2; i++ {
		room, err := b.Join(alice, " sales ")
		require.NoError(t, err)
		assert.Equal(t, "sales", room)
	}
	assert.Equal(t, 1, b.Members("sales"))

	_, err := b.Join(alice, "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestBroker_DisconnectStopsDelivery(t *testing.T) {
	b := newTestBroker(t, &stubChat{})
	alice := newTestClient(b, "alice", 8)
	bob := newTestClient(b, "bob", 8)
	for _, c := range []*Client{alice, bob} {
		_, err := b.Join(c, "sales")
		require.NoError(t, err)
	}

	b.Disconnect(bob)
	assert.Equal(t, 1, b.Members("sales"))

	_, err := b.Send(context.Background(), alice, "anyone?", "sales")
	require.NoError(t, err)
	assert.Empty(t, drain(t, bob))

	_, err = b.Join(bob, "sales")
	require.ErrorIs(t, err, ErrClientClosed)
	_, err = b.Send(context.Background(), bob, "hi", "sales")
	require.ErrorIs(t, err, ErrClientClosed)

	b.Disconnect(bob)
	select {
	case <-bob.Done():
	default:
		t.Fatal("disconnected client should be done")
	}
}

func TestBroker_SlowConsumerDisconnected(t *testing.T) {
	b := newTestBroker(t, &stubChat{})
	alice := newTestClient(b, "alice", 8)
	slow := newTestClient(b, "slow", 1)
	for _, c := range []*Client{alice, slow} {
		_, err := b.Join(c, "sales")
		require.NoError(t, err)
	}

	for i := 0; i < 2; i++ {
		_, err := b.Send(context.Background(), alice, "msg", "sales")
		require.NoError(t, err)
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow consumer should have been disconnected")
	}
	assert.Equal(t, 1, b.Members("sales"))
	assert.Len(t, drain(t, alice), 2)
}

func TestBroker_RoomOrderMatchesStoreOrder(t *testing.T) {
	const senders, perSender = 8, 10
	chat := &stubChat{}
	b := newTestBroker(t, chat)

	members := make([]*Client, senders)
	for i := range members {
		members[i] = newTestClient(b, string(rune('a'+i)), senders*perSender)
		_, err := b.Join(members[i], "sales")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, c := range members {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := b.Send(context.Background(), c, "msg", "sales")
				if err != nil {
					t.Errorf("send: %v", err)
				}
			}
		}(c)
	}
	wg.Wait()

	want := make([]string, 0, senders*perSender)
	for _, m := range chat.saved {
		want = append(want, m.ID)
	}
	for _, c := range members {
		var got []string
		for _, f := range drain(t, c) {
			var m domain.Message
			raw, _ := json.Marshal(f.Data)
			require.NoError(t, json.Unmarshal(raw, &m))
			got = append(got, m.ID)
		}
		assert.Equal(t, want, got, "member %s saw a different order", c.session.Identity.SubjectID)
	}
}

func TestBroker_CloseDisconnectsEveryone(t *testing.T) {
	b := newTestBroker(t, &stubChat{})
	alice := newTestClient(b, "alice", 8)
	bob := newTestClient(b, "bob", 8)
	_, err := b.Join(alice, "sales")
	require.NoError(t, err)

	b.Close()
	for _, c := range []*Client{alice, bob} {
		select {
		case <-c.Done():
		default:
			t.Fatal("client still open after Close")
		}
	}
	assert.Zero(t, b.Members("sales"))
}

func TestClientError(t *testing.T) {
	assert.Equal(t, "validation failed: text is required",
		clientError(fmt.Errorf("send message: %w: text is required", domain.ErrValidation)))
	assert.Equal(t, "Internal server error", clientError(domain.ErrDirectoryUnavailable))
}
