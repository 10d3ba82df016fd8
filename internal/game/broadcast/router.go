// Package broadcast delivers outbound protocol messages to sets of sessions
// partitioned by map. Delivery is best-effort and fire-and-forget: a failed
// send is logged and never reported back to the caller, and one recipient's
// failure never prevents delivery to the rest.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/miniisland/island/internal/game/session"
)

// Router fans messages out to sessions via the registry's connection snapshots.
type Router struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewRouter creates a Router over the given registry.
//
// Precondition: registry and logger must be non-nil.
func NewRouter(registry *session.Registry, logger *zap.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// ToMap sends msg to every session currently in mapName.
func (r *Router) ToMap(mapName, msg string) {
	r.deliver(r.registry.Recipients(mapName), msg)
}

// ToAll sends msg to every session regardless of map.
func (r *Router) ToAll(msg string) {
	r.deliver(r.registry.AllRecipients(), msg)
}

// ToAllExcept sends msg to every session except the named one. Used for
// relays where the sender already knows its own state.
func (r *Router) ToAllExcept(username, msg string) {
	r.deliver(r.registry.AllRecipientsExcept(username), msg)
}

// ToMapExcept sends msg to every session in mapName except the named one.
func (r *Router) ToMapExcept(mapName, username, msg string) {
	r.deliver(r.registry.RecipientsExcept(mapName, username), msg)
}

// ToPlayer sends msg to the single session for username, if present.
// An unknown username is a no-op.
func (r *Router) ToPlayer(username, msg string) {
	conn, ok := r.registry.ConnOf(username)
	if !ok {
		r.logger.Debug("dropping message for unknown player",
			zap.String("username", username),
		)
		return
	}
	r.send(conn, msg)
}

func (r *Router) deliver(conns []session.Conn, msg string) {
	for _, conn := range conns {
		r.send(conn, msg)
	}
}

// send writes one message to one connection. Errors are logged only; a
// disconnecting peer must not disturb delivery to anyone else.
func (r *Router) send(conn session.Conn, msg string) {
	if err := conn.Send(msg); err != nil {
		r.logger.Debug("send failed", zap.Error(err))
	}
}
