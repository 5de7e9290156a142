package relay

import (
	"github.com/mxcop/flow/internal/logging"
	"github.com/mxcop/flow/internal/registry"
)

// Broadcast delivers payload to every logged-in user except excludeAddr.
// It first takes a snapshot of the current sinks under the
// Registry lock, then releases the lock and writes to each sink in turn;
// a failure on one sink never prevents delivery to the others.
func Broadcast(reg *registry.Registry, excludeAddr string, payload []byte) {
	for _, u := range reg.SnapshotSinks(excludeAddr) {
		if !u.Sink.Write(payload) {
			logging.Warn(identity(u), "send buffer full, dropping message")
		}
	}
}

// Unicast delivers payload to exactly one user's sink.
func Unicast(u registry.User, payload []byte) {
	if !u.Sink.Write(payload) {
		logging.Warn(identity(u), "send buffer full, dropping message")
	}
}
