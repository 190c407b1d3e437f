package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

// ErrClientClosed is returned for operations on a disconnected client.
var ErrClientClosed = errors.New("client disconnected")

// Client is the broker's handle on one authenticated connection. Frames
// queued for it are drained by the connection's writer.
type Client struct {
	session Session
	send    chan []byte

	closeOnce sync.Once
	done      chan struct{}

	// rooms is guarded by RoomBroker.mu.
	rooms map[string]struct{}
}

// NewClient returns a client whose outbound queue holds buffer frames.
func NewClient(session Session, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		session: session,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		rooms:   make(map[string]struct{}),
	}
}

func (c *Client) Session() Session { return c.session }

// Outbound yields frames to write to the socket.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Done is closed once the client has been disconnected.
func (c *Client) Done() <-chan struct{} { return c.done }

// enqueue queues frame without blocking. It reports false when the client
// is closed or its queue is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// RoomBroker tracks room membership and fans events out to members.
// Persisting and broadcasting a room's messages runs on that room's
// dispatcher worker, so every member sees them in storage order.
type RoomBroker struct {
	chat       ports.ChatService
	dispatcher *Dispatcher
	log        zerolog.Logger

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
}

func NewRoomBroker(chat ports.ChatService, dispatcher *Dispatcher, log zerolog.Logger) *RoomBroker {
	return &RoomBroker{
		chat:       chat,
		dispatcher: dispatcher,
		log:        log,
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Register admits a freshly authenticated client. It joins no room.
func (b *RoomBroker) Register(c *Client) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
}

// Join adds c to room. Joining a room twice is a no-op. Any authenticated
// identity may join any room.
func (b *RoomBroker) Join(c *Client, room string) (string, error) {
	if strings.TrimSpace(room) == "" {
		return "", fmt.Errorf("%w: room is required", domain.ErrValidation)
	}
	room, err := domain.NormalizeRoom(room)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed() {
		return "", ErrClientClosed
	}

	members, ok := b.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		b.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return room, nil
}

// Send persists text as a message from c and, only once it is stored,
// delivers newMessage to every current member of room, c included when it
// has joined. c does not need to be a member to send.
func (b *RoomBroker) Send(ctx context.Context, c *Client, text, room string) (domain.Message, error) {
	if c.closed() {
		return domain.Message{}, ErrClientClosed
	}
	room, err := domain.NormalizeRoom(room)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return domain.Message{}, err
	}

	var (
		msg     domain.Message
		postErr error
	)
	err = b.dispatcher.Do(ctx, room, func(ctx context.Context) {
		msg, postErr = b.chat.Post(ctx, c.session.Identity, text, room)
		if postErr != nil {
			return
		}
		b.broadcast(room, encode(serverFrame{Event: EventNewMessage, Data: msg}), nil, EventNewMessage)
	})
	if err == nil {
		err = postErr
	}

	switch {
	case err == nil:
		metrics.MessagesTotal.WithLabelValues("delivered").Inc()
		return msg, nil
	case errors.Is(err, domain.ErrValidation):
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.MessagesTotal.WithLabelValues("error").Inc()
		b.log.Error().Err(err).
			Str("room", room).
			Str("connection_id", c.session.ConnectionID).
			Msg("send message failed")
	}
	return domain.Message{}, fmt.Errorf("send message: %w", err)
}

// Typing tells the other members of room that c started or stopped typing.
// Nothing is stored and the sender never receives its own indicator.
func (b *RoomBroker) Typing(c *Client, room string, isTyping bool) error {
	if c.closed() {
		return ErrClientClosed
	}
	room, err := domain.NormalizeRoom(room)
	if err != nil {
		return err
	}
	frame := encode(serverFrame{Event: EventTyping, Data: typingEvent{
		User:     c.session.Identity.SubjectID,
		Room:     room,
		IsTyping: isTyping,
	}})
	b.broadcast(room, frame, c, EventTyping)
	return nil
}

// Disconnect removes c from every room and closes it. No frame is queued
// for c afterwards.
func (b *RoomBroker) Disconnect(c *Client) {
	b.mu.Lock()
	for room := range c.rooms {
		if members, ok := b.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(b.rooms, room)
			}
		}
	}
	c.rooms = make(map[string]struct{})
	delete(b.clients, c)
	c.close()
	b.mu.Unlock()
}

// Close disconnects every client. Used on shutdown.
func (b *RoomBroker) Close() {
	b.mu.RLock()
	all := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		all = append(all, c)
	}
	b.mu.RUnlock()

	for _, c := range all {
		b.Disconnect(c)
	}
}

// Members returns the number of connections in room.
func (b *RoomBroker) Members(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// broadcast queues frame for every member of room except skip. Members
// whose queue is full are disconnected.
func (b *RoomBroker) broadcast(room string, frame []byte, skip *Client, event string) {
	b.mu.RLock()
	targets := make([]*Client, 0, len(b.rooms[room]))
	for m := range b.rooms[room] {
		if m != skip {
			targets = append(targets, m)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if m.enqueue(frame) {
			delivered++
			continue
		}
		if m.closed() {
			continue
		}
		metrics.SlowConsumerDisconnects.Inc()
		b.log.Warn().
			Str("connection_id", m.session.ConnectionID).
			Str("room", room).
			Msg("send buffer full, disconnecting slow consumer")
		b.Disconnect(m)
	}
	metrics.BroadcastFanout.WithLabelValues(event).Observe(float64(delivered))
}
