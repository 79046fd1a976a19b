// Package wsapi exposes a motion controller to remote operators over
// JSON-RPC 2.0, both as plain HTTP POSTs to /jsonrpc and over a
// websocket at /websocket. Websocket clients may subscribe to status
// updates and receive controller errors as notifications.
//
// Methods:
//
//	server.info            instance and connection details
//	motion.status          latest status block
//	motion.config          latest configuration block
//	motion.command         {"command": "JOG_INCR", "args": {...}}
//	motion.subscribe       start notify_status_update for this client
//	motion.errors          drain the controller error ring
//	motion.emergency_stop  trip the safety watchdog
package wsapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/log"
	"emcmot-go/pkg/safety"
	"emcmot-go/pkg/shmem"
)

// Controller is the supervisor view of the controller. *usrmot.Client
// satisfies it.
type Controller interface {
	ReadStatus(*shmem.Status) error
	ReadConfig(*shmem.Config) error
	ErrorGet() (string, bool, error)
	WriteCommand(shmem.Command) error
	InstanceID() string
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on, e.g. ":7125"
	Addr string
	// Interval between status broadcasts
	Interval time.Duration

	Controller Controller
	// Safety is optional; without it emergency stop is refused.
	Safety *safety.Watchdog
}

// Server serves the JSON-RPC API.
type Server struct {
	cfg        Config
	ctl        Controller
	log        *log.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
	startTime  time.Time

	clientsMu sync.RWMutex
	clients   map[string]*wsClient

	// serializes WriteCommand callers; the controller has one slot
	cmdMu sync.Mutex

	running atomic.Bool
	addr    atomic.Value // string
}

// New creates a server for cfg.Controller.
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	s := &Server{
		cfg:       cfg,
		ctl:       cfg.Controller,
		log:       log.GetLogger("wsapi"),
		clients:   make(map[string]*wsClient),
		startTime: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.addr.Store(cfg.Addr)

	mux := http.NewServeMux()
	mux.HandleFunc("/jsonrpc", s.handleJSONRPC)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/motion/status", s.handleStatus)
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Handler returns the HTTP handler, for mounting or tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Address returns the listen address, resolved once started.
func (s *Server) Address() string { return s.addr.Load().(string) }

// Start listens and serves until ctx is done or Stop is called. Status
// broadcasts run for as long as the server does.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrRuntimeInit, "wsapi listen")
	}
	s.addr.Store(ln.Addr().String())
	s.running.Store(true)
	s.log.WithField("address", s.Address()).Info("api server listening")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	err = s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.ErrRuntime, "wsapi server")
	}
	return nil
}

// Stop closes every client and the listener.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.clientsMu.Lock()
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = make(map[string]*wsClient)
	s.clientsMu.Unlock()
	return s.httpServer.Close()
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// JSON-RPC 2.0 structures

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServer         = -32000
)

// rpcFailure pairs an error with its JSON-RPC code.
type rpcFailure struct {
	code int
	err  error
}

func (f *rpcFailure) Error() string { return f.err.Error() }

func failure(code int, err error) error { return &rpcFailure{code, err} }

func (s *Server) response(req rpcRequest, client *wsClient) rpcResponse {
	result, err := s.dispatch(req.Method, req.Params, client)
	if err == nil {
		return rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID}
	}
	e := &rpcError{Code: codeServer, Message: err.Error()}
	if f, ok := err.(*rpcFailure); ok {
		e.Code = f.code
		err = f.err
	}
	if code := errors.CodeOf(err); code != "" {
		e.Data = map[string]any{"code": string(code)}
	}
	return rpcResponse{JSONRPC: "2.0", Error: e, ID: req.ID}
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
		return
	}
	writeJSON(w, s.response(req, nil))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.methodStatus()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, st)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// broadcastLoop sends status to subscribers and errors to everyone.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	s.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()
	if len(clients) == 0 {
		return
	}

	eventtime := time.Since(s.startTime).Seconds()
	for {
		msg, ok, err := s.ctl.ErrorGet()
		if err != nil || !ok {
			break
		}
		n := notification{JSONRPC: "2.0", Method: "notify_motion_error", Params: []any{msg, eventtime}}
		for _, c := range clients {
			c.Send(n)
		}
	}

	view, err := s.methodStatus()
	if err != nil {
		return
	}
	n := notification{JSONRPC: "2.0", Method: "notify_status_update", Params: []any{view, eventtime}}
	for _, c := range clients {
		if c.subscribed.Load() {
			c.Send(n)
		}
	}
}

// handleWebSocket upgrades the connection and serves it until closed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := newWSClient(s, conn)

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()
	s.log.WithField("client", c.id).Info("websocket client connected")

	go c.writePump()
	c.Send(notification{JSONRPC: "2.0", Method: "notify_connected", Params: []any{map[string]any{
		"client_id": c.id,
		"instance":  s.ctl.InstanceID(),
	}}})
	c.readPump()
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	delete(s.clients, c.id)
	s.clientsMu.Unlock()
	s.log.WithField("client", c.id).Info("websocket client disconnected")
}

// wsClient is one websocket connection.
type wsClient struct {
	id         string
	conn       *websocket.Conn
	server     *Server
	sendCh     chan any
	done       chan struct{}
	closeOnce  sync.Once
	subscribed atomic.Bool
}

func newWSClient(s *Server, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:     uuid.NewV4().String(),
		conn:   conn,
		server: s,
		sendCh: make(chan any, 64),
		done:   make(chan struct{}),
	}
}

// Send queues msg, dropping it when the client is not keeping up.
func (c *wsClient) Send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.log.WithField("client", c.id).Warn("dropping message, send queue full")
	}
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.Send(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
			continue
		}
		c.Send(c.server.response(req, c))
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.WithError(err).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
