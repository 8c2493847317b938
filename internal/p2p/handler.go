package p2p

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ghostnetwork/ghost-node/internal/ghost"
	"github.com/ghostnetwork/ghost-node/internal/srp"
	"github.com/ghostnetwork/ghost-node/internal/state"
)

const (
	startupDelay   = 500 * time.Millisecond
	dialTimeout    = 1 * time.Second
	authTimeout    = 10 * time.Second
	pingInterval   = 30 * time.Second
	sendQueueDepth = 64
)

// Handler owns exactly one connection at a time. A bidirectional handler
// first tries to dial its assigned peer and falls back to accepting;
// inbound-only handlers always accept. After a successful handshake the
// handler is Ready: it decrypts and routes inbound frames and drains its
// send queue, until the connection dies and the supervisor loop respawns
// it.
type Handler struct {
	id            int
	bidirectional bool
	listener      net.Listener
	registry      *Registry
	auth          *srp.Authenticator
	peers         PeerDirectory
	peerList      func() []string
	sink          MessageSink
	events        *state.Events
	logger        *log.Entry

	sendCh chan sendRequest

	mu           sync.Mutex
	state        HandlerState
	peername     string
	outbound     bool
	conn         net.Conn
	sessionKey   []byte
	ping         time.Duration
	lastPingSent time.Time
}

func newHandler(id int, bidirectional bool, listener net.Listener, registry *Registry,
	auth *srp.Authenticator, peers PeerDirectory, peerList func() []string, sink MessageSink,
	events *state.Events) *Handler {
	return &Handler{
		id:            id,
		bidirectional: bidirectional,
		listener:      listener,
		registry:      registry,
		auth:          auth,
		peers:         peers,
		peerList:      peerList,
		sink:          sink,
		events:        events,
		logger: log.WithFields(log.Fields{
			"module":  "p2p",
			"handler": id,
		}),
		sendCh: make(chan sendRequest, sendQueueDepth),
	}
}

func (h *Handler) ID() int {
	return h.id
}

func (h *Handler) State() HandlerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Peername is the textual IP of the connected peer, empty until Ready.
func (h *Handler) Peername() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peername
}

// Ping is the last measured round-trip to the peer.
func (h *Handler) Ping() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ping
}

func (h *Handler) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == StateReady && h.peername != ""
}

func (h *Handler) setState(s HandlerState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Send enqueues one typed message for the peer. It never blocks; when the
// handler is down or the queue is full the message is dropped, matching
// the fire-and-forget gossip contract.
func (h *Handler) Send(msgType string, params ...ghost.Param) {
	if !h.Connected() {
		return
	}
	select {
	case h.sendCh <- sendRequest{msgType: msgType, params: params}:
	default:
		h.logger.Warnf("Send queue full, dropping %s for %s", msgType, h.Peername())
	}
}

// run is the handler's supervision loop: one connection lifetime per
// iteration, one-for-one restart until shutdown.
func (h *Handler) run(ctx context.Context) {
	for {
		h.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (h *Handler) runOnce(ctx context.Context) {
	h.setState(StateIdle)

	select {
	case <-time.After(startupDelay):
	case <-ctx.Done():
		h.setState(StateDead)
		return
	}

	conn, target, outbound := h.establish()
	if conn == nil {
		h.setState(StateDead)
		return
	}

	peername, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	// One session per peer IP. The check runs before authenticating an
	// accepted connection so a duplicate never reaches Ready.
	if !outbound && h.registry.HasPeer(peername, h.id) {
		h.logger.Debugf("Duplicate connection from %s, closing", peername)
		conn.Close()
		h.setState(StateDead)
		return
	}

	h.setState(StateAuthenticating)
	conn.SetDeadline(time.Now().Add(authTimeout))
	key, err := h.authenticate(conn, target, outbound)
	conn.SetDeadline(time.Time{})
	if err != nil {
		h.logger.Warnf("Handshake with %s failed: %v", peername, err)
		conn.Close()
		h.setState(StateDead)
		return
	}

	h.mu.Lock()
	h.conn = conn
	h.sessionKey = key
	h.peername = peername
	h.outbound = outbound
	h.ping = 0
	h.state = StateReady
	h.mu.Unlock()
	h.logger.Infof("Session established with %s (outbound=%v)", peername, outbound)
	h.publishPeer(peername, true)

	h.serve(ctx, conn, key)

	h.mu.Lock()
	h.conn = nil
	h.sessionKey = nil
	h.peername = ""
	h.state = StateDead
	h.mu.Unlock()
	h.logger.Infof("Connection to %s closed", peername)
	h.publishPeer(peername, false)
}

// establish picks the connection per the role policy: bidirectional
// handler i dials peers[i-1] when the peer list reaches that far, and any
// failure degrades to accepting on the shared listener.
func (h *Handler) establish() (net.Conn, string, bool) {
	if h.bidirectional {
		peers := h.peerList()
		if len(peers) >= h.id {
			target := peers[h.id-1]
			h.setState(StateDialing)
			conn, err := net.DialTimeout("tcp", target, dialTimeout)
			if err == nil {
				return conn, target, true
			}
			h.logger.Debugf("Dial %s failed, falling back to listen: %v", target, err)
		}
	}

	h.setState(StateListening)
	conn, err := h.listener.Accept()
	if err != nil {
		// Listener closed on shutdown.
		return nil, "", false
	}
	return conn, "", false
}

func (h *Handler) authenticate(conn net.Conn, target string, outbound bool) ([]byte, error) {
	if !outbound {
		return h.auth.HandshakeInbound(conn)
	}
	registered := h.peers.IsRegistered(target)
	key, err := h.auth.HandshakeOutbound(conn, registered)
	if err != nil {
		return nil, err
	}
	if !registered {
		if err := h.peers.MarkRegistered(target); err != nil {
			h.logger.Debugf("Failed to mark %s registered: %v", target, err)
		}
	}
	return key, nil
}

func (h *Handler) publishPeer(peername string, connected bool) {
	if h.events == nil {
		return
	}
	h.events.PublishPeer(state.PeerEvent{Peername: peername, Connected: connected})
}

// serve runs the session: a writer goroutine draining the send queue and
// the read loop on the calling goroutine. Either side failing tears the
// connection down.
func (h *Handler) serve(ctx context.Context, conn net.Conn, key []byte) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go h.writeLoop(conn, key, done)
	h.readLoop(conn, key)
}

func (h *Handler) readLoop(conn net.Conn, key []byte) {
	for {
		record, err := ghost.ReadRecord(conn)
		if err != nil {
			return
		}
		frame, err := h.decode(record, key)
		if err != nil {
			h.logger.Warnf("Dropping undecodable frame from %s: %v", h.Peername(), err)
			continue
		}

		switch frame.Type {
		case MsgTypePing:
			h.Send(MsgTypePang)
		case MsgTypePang:
			h.mu.Lock()
			if !h.lastPingSent.IsZero() {
				h.ping = time.Since(h.lastPingSent)
			}
			h.mu.Unlock()
		default:
			h.sink.Deliver(frame, h)
		}
	}
}

func (h *Handler) decode(record, key []byte) (ghost.Frame, error) {
	plain, err := ghost.Open(key, record)
	if err != nil {
		return ghost.Frame{}, err
	}
	return ghost.Unmarshal(plain)
}

func (h *Handler) writeLoop(conn net.Conn, key []byte, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			h.mu.Lock()
			h.lastPingSent = time.Now()
			h.mu.Unlock()
			if err := h.writeFrame(conn, key, ghost.NewFrame(MsgTypePing)); err != nil {
				conn.Close()
				return
			}
		case req := <-h.sendCh:
			if err := h.writeFrame(conn, key, ghost.NewFrame(req.msgType, req.params...)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// writeFrame encodes, encrypts and sends one frame. Encode failures are
// logged and swallowed; only socket errors kill the session.
func (h *Handler) writeFrame(conn net.Conn, key []byte, frame ghost.Frame) error {
	raw, err := ghost.Marshal(frame)
	if err != nil {
		h.logger.Errorf("Failed to encode %s frame: %v", frame.Type, err)
		return nil
	}
	sealed, err := ghost.Seal(key, raw)
	if err != nil {
		h.logger.Errorf("Failed to encrypt %s frame: %v", frame.Type, err)
		return nil
	}
	return ghost.WriteRecord(conn, sealed)
}
