package relay

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/mxcop/flow/internal/logging"
	"github.com/mxcop/flow/internal/protocol"
	"github.com/mxcop/flow/internal/registry"
)

// identity renders a logged-in user as the "id:name" tag used in logs.
func identity(u registry.User) string {
	return u.ID + ":" + u.Name
}

// whoFor resolves the log identity for addr: the logged-in user's
// identity if one exists, otherwise the raw address.
func whoFor(reg *registry.Registry, addr string) string {
	if u, ok := reg.GetByAddr(addr); ok {
		return identity(u)
	}
	return addr
}

// requireUser enforces the rule that every handler but login must
// be invoked by a logged-in user.
func requireUser(reg *registry.Registry, sess Session) (registry.User, bool, string) {
	u, ok := reg.GetByAddr(sess.Addr)
	if !ok {
		return registry.User{}, false, "User not authorized"
	}
	return u, true, ""
}

func handleLogin(reg *registry.Registry, sess Session, msg protocol.Inbound) (bool, string) {
	if msg.Name == "" {
		return false, "Missing name"
	}

	if _, ok := reg.GetByAddr(sess.Addr); ok {
		return false, "User cannot login twice"
	}

	existing := reg.SnapshotUsers(sess.Addr)
	roster := protocol.Roster{Type: "login", Users: make([]protocol.UserRef, 0, len(existing))}
	for _, u := range existing {
		roster.Users = append(roster.Users, protocol.UserRef{ID: u.ID, Name: u.Name})
	}

	u, err := reg.AddUser(sess.Addr, msg.Name, sess.Sink)
	if err != nil {
		// Lost a race against a concurrent login on the same addr between
		// the check above and AddUser; same outcome either way.
		return false, "User cannot login twice"
	}

	if payload, err := json.Marshal(roster); err == nil {
		Unicast(u, payload)
	}

	join := protocol.Presence{Type: "join", User: protocol.UserRef{ID: u.ID, Name: u.Name}}
	if payload, err := json.Marshal(join); err == nil {
		Broadcast(reg, sess.Addr, payload)
	}

	logging.Info(identity(u), "logged in")
	return true, ""
}

func handleChat(reg *registry.Registry, sess Session, msg protocol.Inbound) (bool, string) {
	u, ok, reason := requireUser(reg, sess)
	if !ok {
		return false, reason
	}
	if msg.Content == "" {
		return false, "Missing content"
	}

	out := protocol.Chat{
		Type:    "chat",
		Sender:  protocol.UserRef{ID: u.ID, Name: u.Name},
		Content: msg.Content,
	}
	if payload, err := json.Marshal(out); err == nil {
		Broadcast(reg, sess.Addr, payload)
	}
	logging.Chat(identity(u), msg.Content)
	return true, ""
}

func handleFile(reg *registry.Registry, sess Session, msg protocol.Inbound) (bool, string) {
	u, ok, reason := requireUser(reg, sess)
	if !ok {
		return false, reason
	}
	if msg.Name == "" || msg.Content == "" {
		return false, "Missing name or content"
	}

	out := protocol.Chat{
		Type:    "file",
		Sender:  protocol.UserRef{ID: u.ID, Name: u.Name},
		Name:    msg.Name,
		Content: msg.Content,
	}
	if payload, err := json.Marshal(out); err == nil {
		Broadcast(reg, sess.Addr, payload)
	}
	logging.Info(identity(u), fmt.Sprintf("sent file %q", msg.Name))
	return true, ""
}

func handleRequest(reg *registry.Registry, sess Session, msg protocol.Inbound) (bool, string) {
	requester, ok, reason := requireUser(reg, sess)
	if !ok {
		return false, reason
	}
	if msg.Target == "" {
		return false, "Missing target"
	}

	target, ok := reg.GetByID(msg.Target)
	if !ok {
		return false, "target not found"
	}

	o := reg.AddOffer(requester.ID, target.ID)

	out := protocol.OfferNotice{Type: "offer", Origin: requester.ID, ID: o.ID}
	if payload, err := json.Marshal(out); err == nil {
		Unicast(target, payload)
	}
	logging.Info(identity(requester), fmt.Sprintf("requested rendezvous with %s (offer %s)", identity(target), o.ID))
	return true, ""
}

func handleOffer(reg *registry.Registry, sess Session, msg protocol.Inbound) (bool, string) {
	sender, ok, reason := requireUser(reg, sess)
	if !ok {
		return false, reason
	}
	if msg.Accept == nil || msg.ID == "" {
		return false, "Missing accept or id"
	}

	o, ok := reg.GetOffer(msg.ID)
	if !ok {
		return false, "Offer not found"
	}

	origin, ok := reg.GetByID(o.Origin)
	if !ok {
		return false, "origin not found"
	}
	target, ok := reg.GetByID(o.Target)
	if !ok {
		return false, "target not found"
	}

	// Only the offer's target may answer it.
	if sender.Addr != target.Addr {
		return false, "Access declined"
	}

	accept := *msg.Accept
	confirm := protocol.Confirm{Type: "confirm", Accept: accept, Offer: o.ID}
	payload, err := json.Marshal(confirm)

	if accept {
		reg.AcceptOffer(o.ID)
		logging.Info(identity(sender), fmt.Sprintf("accepted offer %s", o.ID))
	} else {
		reg.RemoveOffer(o.ID)
		logging.Info(identity(sender), fmt.Sprintf("declined offer %s", o.ID))
	}

	if err == nil {
		Unicast(target, payload)
		Unicast(origin, payload)
	}
	return true, ""
}

func handleSession(reg *registry.Registry, sess Session, msg protocol.Inbound) (bool, string) {
	sender, ok, reason := requireUser(reg, sess)
	if !ok {
		return false, reason
	}
	if msg.Offer == "" || msg.Port == nil {
		return false, "Missing offer or port"
	}

	o, ok := reg.GetOffer(msg.Offer)
	if !ok {
		return false, "Offer not found"
	}

	origin, ok := reg.GetByID(o.Origin)
	if !ok {
		return false, "origin not found"
	}
	target, ok := reg.GetByID(o.Target)
	if !ok {
		return false, "target not found"
	}

	if sender.Addr != origin.Addr && sender.Addr != target.Addr {
		return false, "Access declined"
	}

	if o.State != registry.Accepted {
		return false, "Offer not accepted"
	}

	other := target
	if sender.Addr == target.Addr {
		other = origin
	}

	alreadySent, bothSent, found := reg.RecordSession(o.ID, sender.ID)
	if !found {
		// The other side's session message resolved the offer first.
		return false, "Offer not found"
	}

	if alreadySent {
		// Idempotent resend: this side already notified its peer once.
		return true, ""
	}

	peerAddr := fmt.Sprintf("%s:%d", hostOf(sender.Addr), *msg.Port)
	out := protocol.Peer{Type: "peer", Addr: peerAddr, Offer: o.ID}
	if payload, err := json.Marshal(out); err == nil {
		Unicast(other, payload)
	}
	logging.Info(identity(sender), fmt.Sprintf("session port %d -> %s (offer %s, resolved=%v)", *msg.Port, identity(other), o.ID, bothSent))
	return true, ""
}

// hostOf extracts the host portion of a "host:port" remote address,
// falling back to the raw address if it isn't in that form.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
