package sessionkit

import (
	"context"
	"log/slog"
	"time"
)

// EventType names a session lifecycle transition.
type EventType string

const (
	EventIssued        EventType = "issued"
	EventRefreshed     EventType = "refreshed"
	EventRefreshDenied EventType = "refresh_denied"
	EventLoggedOut     EventType = "logged_out"
	EventSignup        EventType = "signup"
	EventSignin        EventType = "signin"
	EventSigninDenied  EventType = "signin_denied"
	EventRateLimited   EventType = "rate_limited"
)

// Event describes one lifecycle transition. It never carries token
// material; TokenID is the jti of the refresh token involved.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Success   bool      `json:"success"`
	Kind      string    `json:"kind,omitempty"`
}

// EventSink receives lifecycle events from the dispatcher goroutine.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// SlogSink writes each event as one structured log record.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink logs events at level through logger. A nil logger selects
// slog.Default().
func NewSlogSink(logger *slog.Logger, level slog.Level) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: level}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("type", string(event.Type)),
		slog.Bool("success", event.Success),
		slog.Time("at", event.Timestamp),
	}
	if event.Subject != "" {
		attrs = append(attrs, slog.String("subject", event.Subject))
	}
	if event.TokenID != "" {
		attrs = append(attrs, slog.String("token_id", event.TokenID))
	}
	if event.ClientIP != "" {
		attrs = append(attrs, slog.String("client_ip", event.ClientIP))
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	s.logger.LogAttrs(ctx, s.level, "session event", attrs...)
}
