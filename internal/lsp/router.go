package lsp

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ServerHandle identifies the language server a request was routed to.
type ServerHandle struct {
	ID       string
	Language string
}

// Router routes document requests and change notifications to the language
// server responsible for a document. Implementations own server lifecycle
// and transport; the bridge only depends on this contract.
type Router interface {
	// Route resolves the server responsible for the document position.
	Route(ctx context.Context, params TextDocumentPositionParams) (ServerHandle, error)

	// NotifyChange delivers a didChange notification for the document at
	// the given version.
	NotifyChange(ctx context.Context, uri DocumentURI, version int, changes []TextDocumentContentChangeEvent) error
}

// Notification is one recorded didChange delivery.
type Notification struct {
	URI     DocumentURI
	Version int
	Changes []TextDocumentContentChangeEvent
}

// LogRouter is a Router that records notifications and logs them instead of
// talking to real servers. It backs the development daemon and tests.
type LogRouter struct {
	mu            sync.Mutex
	logger        *zap.Logger
	notifications []Notification
}

// NewLogRouter creates a LogRouter. A nil logger disables logging.
func NewLogRouter(logger *zap.Logger) *LogRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRouter{logger: logger}
}

// Route implements Router. It always resolves to a synthetic handle.
func (r *LogRouter) Route(_ context.Context, params TextDocumentPositionParams) (ServerHandle, error) {
	r.logger.Debug("route request",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int("line", params.Position.Line),
		zap.Int("character", params.Position.Character))
	return ServerHandle{ID: "log", Language: "plaintext"}, nil
}

// NotifyChange implements Router, recording the notification.
func (r *LogRouter) NotifyChange(_ context.Context, uri DocumentURI, version int, changes []TextDocumentContentChangeEvent) error {
	r.mu.Lock()
	r.notifications = append(r.notifications, Notification{URI: uri, Version: version, Changes: changes})
	r.mu.Unlock()

	r.logger.Debug("change notification",
		zap.String("uri", string(uri)),
		zap.Int("version", version),
		zap.Int("changes", len(changes)))
	return nil
}

// Notifications returns a copy of all recorded notifications.
func (r *LogRouter) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// NotificationsFor returns recorded notifications for one document.
func (r *LogRouter) NotificationsFor(uri DocumentURI) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notifications {
		if n.URI == uri {
			out = append(out, n)
		}
	}
	return out
}
