package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mxcop/flow/internal/logging"
	"github.com/mxcop/flow/internal/protocol"
	"github.com/mxcop/flow/internal/registry"
)

// Dispatch parses one inbound JSON frame and routes it by its "type"
// field to the matching handler. Every recoverable failure —
// parse, schema, auth, not-found, or state — is logged under the sender's
// identity and never terminates the connection.
func Dispatch(reg *registry.Registry, sess Session, raw []byte) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		logging.Warn(whoFor(reg, sess.Addr), fmt.Sprintf("parse error: %v", err))
		return
	}

	rawType, present := probe["type"]
	var typ string
	if !present || json.Unmarshal(rawType, &typ) != nil || typ == "" {
		logging.Warn(whoFor(reg, sess.Addr), `missing or invalid "type" field`)
		return
	}

	var msg protocol.Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		logging.Warn(whoFor(reg, sess.Addr), fmt.Sprintf("schema error: %v", err))
		return
	}

	var ok bool
	var reason string
	switch typ {
	case "login":
		ok, reason = handleLogin(reg, sess, msg)
	case "chat":
		ok, reason = handleChat(reg, sess, msg)
	case "file":
		ok, reason = handleFile(reg, sess, msg)
	case "request":
		ok, reason = handleRequest(reg, sess, msg)
	case "offer":
		ok, reason = handleOffer(reg, sess, msg)
	case "session":
		ok, reason = handleSession(reg, sess, msg)
	default:
		logging.Warn(whoFor(reg, sess.Addr), fmt.Sprintf("Unknown type %s", typ))
		return
	}

	if !ok {
		entry := fmt.Sprintf("%s -> %s", strings.ToUpper(typ), reason)
		if reason == "Access declined" {
			logging.Deny(whoFor(reg, sess.Addr), entry)
		} else {
			logging.Warn(whoFor(reg, sess.Addr), entry)
		}
	}
}
