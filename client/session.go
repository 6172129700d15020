package client

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/madshubh27/Crotex/document"
)

// ErrNotConnected is returned when a send is attempted while the session has
// no live connection. Callers drop the message; the emitter's next debounce
// cycle re-attempts with current state.
var ErrNotConnected = errors.New("session not connected")

// Session is the single long-lived websocket connection between a client and
// the relay. It carries join/leave/push upstream and deliver/roomUsers
// downstream, and reconnects with exponential backoff when the connection
// drops. Room membership does not survive a transport-level reconnect, so
// the session re-issues join for every room it was in.
type Session struct {
	url         string
	dialer      *websocket.Dialer
	maxAttempts uint64
	retryBase   time.Duration

	// Handlers must be set before Connect.
	OnDeliver    func(room string, elements document.Snapshot)
	OnRoomUsers  func(room string, count int)
	OnConnect    func()
	OnDisconnect func()

	mu     sync.Mutex
	conn   *websocket.Conn
	joined map[string]bool
	closed bool
}

// NewSession prepares a session for the relay at url (ws://host/ws). No
// connection is made until Connect.
func NewSession(url string) *Session {
	return &Session{
		url:         url,
		dialer:      &websocket.Dialer{HandshakeTimeout: 20 * time.Second},
		maxAttempts: 5,
		retryBase:   250 * time.Millisecond,
		joined:      make(map[string]bool),
	}
}

// Connect dials the relay and starts the read loop.
func (s *Session) Connect() error {
	conn, _, err := s.dialer.Dial(s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.readLoop(conn)
	return nil
}

// Connected reports whether the session currently has a live connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Join registers interest in a room. The join is sent immediately when
// connected and re-sent automatically after every reconnect.
func (s *Session) Join(room string) error {
	s.mu.Lock()
	s.joined[room] = true
	s.mu.Unlock()
	err := s.write(document.Message{Type: document.TypeJoin, Room: room})
	if errors.Is(err, ErrNotConnected) {
		// Deferred: the reconnect path replays joins.
		return nil
	}
	return err
}

// Leave drops room membership and tells the relay.
func (s *Session) Leave(room string) error {
	s.mu.Lock()
	delete(s.joined, room)
	s.mu.Unlock()
	err := s.write(document.Message{Type: document.TypeLeave, Room: room})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// Push sends a full snapshot for room.
func (s *Session) Push(room string, elements document.Snapshot) error {
	return s.write(document.Message{Type: document.TypePush, Room: room, Elements: elements})
}

// Close shuts the session down permanently; no reconnect is attempted.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return conn.Close()
	}
	return nil
}

// write marshals m onto the current connection. gorilla permits one
// concurrent writer, so writes serialize on s.mu.
func (s *Session) write(m document.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteJSON(m)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var m document.Message
		if err := conn.ReadJSON(&m); err != nil {
			break
		}
		switch m.Type {
		case document.TypeDeliver:
			if s.OnDeliver != nil {
				s.OnDeliver(m.Room, m.Elements)
			}
		case document.TypeRoomUsers:
			if s.OnRoomUsers != nil {
				s.OnRoomUsers(m.Room, m.Count)
			}
		}
	}
	conn.Close()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	closed := s.closed
	s.mu.Unlock()

	if s.OnDisconnect != nil {
		s.OnDisconnect()
	}
	if !closed {
		s.reconnect()
	}
}

// reconnect re-dials with exponential backoff up to maxAttempts, then gives
// up and leaves the session in local-only mode. On success it re-joins every
// room and resumes the read loop.
func (s *Session) reconnect() {
	var conn *websocket.Conn
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryBase
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return backoff.Permanent(errors.New("session closed"))
		}
		s.mu.Unlock()

		c, _, err := s.dialer.Dial(s.url, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithMaxRetries(b, s.maxAttempts))
	if err != nil {
		log.Printf("[session] reconnect to %s failed, staying offline: %v", s.url, err)
		return
	}

	s.mu.Lock()
	s.conn = conn
	rooms := make([]string, 0, len(s.joined))
	for room := range s.joined {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()

	for _, room := range rooms {
		if err := s.write(document.Message{Type: document.TypeJoin, Room: room}); err != nil {
			log.Printf("[session] re-join of room %s failed: %v", room, err)
		}
	}
	if s.OnConnect != nil {
		s.OnConnect()
	}
	go s.readLoop(conn)
}
