package newswire

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"NewsPull/internal/domain/models"
	drepo "NewsPull/internal/domain/repository"
	"NewsPull/pkg/logger"
)

const sourceName = "newswire"

// Stream implements a NewsStream backed by a WebSocket headline feed.
type Stream struct {
	apiKey         string
	url            string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *logger.Logger

	mu        sync.Mutex // guards conn and connected
	conn      *websocket.Conn
	connected bool
}

// New creates a new headline stream.
func New(apiKey, url string, symbols []string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) drepo.NewsStream {
	return &Stream{
		apiKey:         apiKey,
		url:            url,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u := s.url
	if s.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", s.url, s.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("newswire connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.l.Info("newswire: connected")
	return nil
}

func (s *Stream) connection() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Subscribe subscribes to news for the configured symbols.
func (s *Stream) Subscribe(ctx context.Context) error {
	conn := s.connection()
	if conn == nil {
		return fmt.Errorf("newswire not connected")
	}
	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe-news", "symbol": models.NormalizeSymbol(sym)}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
		s.l.Info("newswire: subscribed", logger.String("symbol", sym))
	}
	return nil
}

type wireItem struct {
	Symbol    string `json:"symbol"`
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
	URL       string `json:"url"`
	Publisher string `json:"source"`
	Datetime  int64  `json:"datetime"` // unix seconds
}

type wireMessage struct {
	Type string     `json:"type"`
	Data []wireItem `json:"data"`
}

// Read streams headlines and errors. Both channels are closed after a read
// failure; the caller reconnects and calls Read again for a fresh pair.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Headline, <-chan error) {
	headlines := make(chan *models.Headline, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if conn := s.connection(); conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(headlines)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				conn := s.connection()
				if conn == nil {
					errs <- fmt.Errorf("newswire conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("newswire read: %w", err)
					return
				}
				var m wireMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-news frames
					continue
				}
				if m.Type != "news" {
					continue
				}
				for _, d := range m.Data {
					h := &models.Headline{
						Symbol:      models.NormalizeSymbol(d.Symbol),
						Source:      sourceName,
						Title:       d.Headline,
						Summary:     d.Summary,
						URL:         d.URL,
						Publisher:   d.Publisher,
						PublishedAt: time.Unix(d.Datetime, 0).UTC(),
					}
					select {
					case headlines <- h:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return headlines, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-time.After(s.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// IsConnected reports whether the stream is connected.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
