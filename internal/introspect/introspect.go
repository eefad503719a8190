// Package introspect serves a read-only WebSocket feed mirroring the
// daemon's broadcasts, per spec.md §4.11's supplemented observability
// surface: disabled unless Global.IntrospectAddr is set, and bound to
// loopback by the caller's address choice so it never leaves the host.
package introspect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// event is the envelope mirrored to every subscriber: the same
// action/payload pair the daemon broadcasts to editor clients.
type event struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// Feed is a loopback-only mirror of daemon broadcasts. It implements
// daemon.Broadcaster.
type Feed struct {
	log *logrus.Entry

	srv *http.Server
	ln  net.Listener

	mu   sync.RWMutex
	subs map[*websocket.Conn]*sync.Mutex
}

// Listen starts the introspection HTTP/WebSocket server on addr (e.g.
// "127.0.0.1:7337"). The caller is responsible for choosing a loopback
// address; Listen does not second-guess it.
func Listen(addr string, log *logrus.Entry) (*Feed, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	f := &Feed{
		log:  log,
		ln:   ln,
		subs: make(map[*websocket.Conn]*sync.Mutex),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", f.handleSubscribe)
	f.srv = &http.Server{Handler: mux}

	go func() {
		if err := f.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			f.log.WithError(err).Warn("introspect: server stopped")
		}
	}()

	log.WithField("addr", addr).Info("introspect: feed listening")
	return f, nil
}

func (f *Feed) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.WithError(err).Debug("introspect: upgrade failed")
		return
	}

	writeMu := &sync.Mutex{}
	f.mu.Lock()
	f.subs[conn] = writeMu
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.subs, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	// Subscribers never send anything meaningful; this loop only exists
	// to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast mirrors one daemon action/payload pair to every connected
// subscriber, dropping connections that fail to keep up.
func (f *Feed) Broadcast(action string, payload any) {
	body, err := json.Marshal(event{Action: action, Payload: payload})
	if err != nil {
		f.log.WithError(err).Warn("introspect: failed to encode event")
		return
	}

	f.mu.RLock()
	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	targets := make([]target, 0, len(f.subs))
	for conn, mu := range f.subs {
		targets = append(targets, target{conn, mu})
	}
	f.mu.RUnlock()

	var dead []*websocket.Conn
	for _, t := range targets {
		t.mu.Lock()
		t.conn.SetWriteDeadline(time.Now().Add(time.Second))
		err := t.conn.WriteMessage(websocket.TextMessage, body)
		t.mu.Unlock()
		if err != nil {
			dead = append(dead, t.conn)
		}
	}

	if len(dead) > 0 {
		f.mu.Lock()
		for _, c := range dead {
			delete(f.subs, c)
		}
		f.mu.Unlock()
	}
}

// Close shuts the feed down, closing every subscriber connection.
func (f *Feed) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := f.srv.Shutdown(ctx)

	f.mu.Lock()
	for conn := range f.subs {
		conn.Close()
	}
	f.subs = make(map[*websocket.Conn]*sync.Mutex)
	f.mu.Unlock()

	return err
}
