package relay

import (
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	srv := NewServer("")
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)
	return "ws" + strings.TrimPrefix(httpServer.URL, "http")
}

func connectClient(t *testing.T, baseURL, name string) (*websocket.Conn, map[string]interface{}) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(baseURL+"/", nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	writeJSON(t, conn, map[string]interface{}{"type": "login", "name": name})
	roster := readUntil(t, conn, func(m map[string]interface{}) bool {
		return m["type"] == "login"
	})
	return conn, roster
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write json: %v", err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		var msg map[string]interface{}
		err := conn.ReadJSON(&msg)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.Fatalf("connection closed unexpectedly: %v", err)
			}
			t.Fatalf("read json: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
	t.Fatal("timed out waiting for matching message")
	return nil
}

func TestIntegrationLoginRosterAndJoinBroadcast(t *testing.T) {
	baseURL := startTestServer(t)

	alice, aliceRoster := connectClient(t, baseURL, "alice")
	defer alice.Close()
	if users, _ := aliceRoster["users"].([]interface{}); len(users) != 0 {
		t.Fatalf("expected alice's roster to be empty, got %#v", users)
	}

	bob, bobRoster := connectClient(t, baseURL, "bob")
	defer bob.Close()
	users, _ := bobRoster["users"].([]interface{})
	if len(users) != 1 {
		t.Fatalf("expected bob's roster to contain alice, got %#v", users)
	}

	readUntil(t, alice, func(m map[string]interface{}) bool {
		if m["type"] != "join" {
			return false
		}
		u, _ := m["user"].(map[string]interface{})
		return u["name"] == "bob"
	})
}

func TestIntegrationChatBroadcast(t *testing.T) {
	baseURL := startTestServer(t)

	alice, _ := connectClient(t, baseURL, "alice")
	defer alice.Close()
	bob, _ := connectClient(t, baseURL, "bob")
	defer bob.Close()

	readUntil(t, alice, func(m map[string]interface{}) bool { return m["type"] == "join" })

	writeJSON(t, alice, map[string]interface{}{"type": "chat", "content": "hello"})
	readUntil(t, bob, func(m map[string]interface{}) bool {
		return m["type"] == "chat" && m["content"] == "hello"
	})
}

func TestIntegrationRendezvousExchangesPeerAddresses(t *testing.T) {
	baseURL := startTestServer(t)

	alice, _ := connectClient(t, baseURL, "alice")
	defer alice.Close()
	bob, bobRoster := connectClient(t, baseURL, "bob")
	defer bob.Close()
	readUntil(t, alice, func(m map[string]interface{}) bool { return m["type"] == "join" })

	// Bob's login roster already lists Alice, since she connected first.
	users, _ := bobRoster["users"].([]interface{})
	bobSeesAlice := users[0].(map[string]interface{})
	aliceID := bobSeesAlice["id"].(string)

	writeJSON(t, bob, map[string]interface{}{"type": "request", "target": aliceID})
	offerMsg := readUntil(t, alice, func(m map[string]interface{}) bool { return m["type"] == "offer" })
	offerID := offerMsg["id"].(string)

	writeJSON(t, alice, map[string]interface{}{"type": "offer", "accept": true, "id": offerID})
	readUntil(t, alice, func(m map[string]interface{}) bool { return m["type"] == "confirm" })
	readUntil(t, bob, func(m map[string]interface{}) bool { return m["type"] == "confirm" })

	writeJSON(t, bob, map[string]interface{}{"type": "session", "offer": offerID, "port": 40001})
	readUntil(t, alice, func(m map[string]interface{}) bool { return m["type"] == "peer" })

	writeJSON(t, alice, map[string]interface{}{"type": "session", "offer": offerID, "port": 50002})
	readUntil(t, bob, func(m map[string]interface{}) bool { return m["type"] == "peer" })
}

func TestIntegrationDisconnectBroadcastsLeave(t *testing.T) {
	baseURL := startTestServer(t)

	alice, _ := connectClient(t, baseURL, "alice")
	bob, _ := connectClient(t, baseURL, "bob")
	defer bob.Close()
	readUntil(t, alice, func(m map[string]interface{}) bool { return m["type"] == "join" })

	alice.Close()
	readUntil(t, bob, func(m map[string]interface{}) bool { return m["type"] == "leave" })
}
