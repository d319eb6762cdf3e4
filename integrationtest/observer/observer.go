// Package observer streams the events of a running game to websocket clients, so a
// browser or a script can watch compression happen while scenarios are played.
//
// Every message is one JSON object:
//
//	{"name": "spawncap:compression_decided", "time": "...", "trace": "<YAML block>"}
//
// The trace is the same YAML the [loggers.YAMLLogger] writes to a trace file. Clients
// can narrow the stream with a comma separated events query parameter:
//
//	ws://127.0.0.1:7777/events?events=spawncap:compression_decided,spawncap:compression_finished
package observer

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/events"
	"github.com/rickchristie/spawncap/loggers"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Message is what a client receives per event.
type Message struct {
	Name  string    `json:"name"`
	Time  time.Time `json:"time"`
	Trace string    `json:"trace"`
}

// Server upgrades loopback HTTP requests to websocket event streams fed from a
// [events.Feed].
type Server struct {
	feed     *events.Feed
	logger   *zap.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
}

func NewServer(feed *events.Feed, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		feed:   feed,
		logger: logger,
		now:    time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler serves one event stream per connection until the client goes away or the feed
// is closed.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.logger.Debug("observer upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ch, unsubscribe := s.feed.Subscribe(eventFilter(r)...)
		defer func() {
			unsubscribe()
			for range ch {
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			// Reading is only used to notice the client closing the connection.
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		s.logger.Info("observer connected", zap.String("remote", r.RemoteAddr))
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
						time.Now().Add(time.Second))
					return
				}
				if err := s.send(conn, e); err != nil {
					s.logger.Debug("observer write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, e spawncap.Event) error {
	now := s.now()
	var buf bytes.Buffer
	trace := events.NewRegistry().Subscribe(loggers.NewYAMLLogger(&buf).WithClock(func() time.Time { return now }))
	trace.Dispatch(nil, e)

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(Message{Name: e.EventName(), Time: now, Trace: buf.String()})
}

func eventFilter(r *http.Request) []string {
	var names []string
	for _, n := range strings.Split(r.URL.Query().Get("events"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
