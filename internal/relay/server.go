package relay

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mxcop/flow/internal/logging"
	"github.com/mxcop/flow/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin may connect: there's no cookie-based auth to defend here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts new transport connections and spawns a Connection Loop
// per client.
type Server struct {
	reg  *registry.Registry
	http *http.Server
}

// NewServer builds a Server backed by a fresh Registry.
func NewServer(addr string) *Server {
	s := &Server{reg: registry.New()}
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler returns the Listener's http.Handler, independent of the
// listening socket it's eventually served on. Exposed so tests can wire
// it into an httptest.Server instead of binding a real port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	return mux
}

// ListenAndServe binds addr and serves upgraded connections until the
// listener fails or is closed. A bind failure is the one fatal error
// class in this system; the caller is expected to log.Fatal it.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.http.Addr, err)
	}
	logging.System(fmt.Sprintf("listening on %s", s.http.Addr))
	return s.http.Serve(ln)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.RemoteAddr, fmt.Sprintf("upgrade error: %v", err))
		return
	}

	logging.Info(ws.RemoteAddr().String(), "connected")
	Serve(s.reg, ws)
}
