// Package transport owns the two sockets the server listens on: a TCP
// listener for the reliable control channel and a UDP socket for the
// best-effort fast channel. Both feed a single Event stream; all game
// logic lives behind that stream, transport goroutines only produce events
// and perform writes.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/protocol"
)

// MaxFrameSize bounds a single TCP frame. Anything larger is treated as a
// protocol violation.
const MaxFrameSize = 64 << 10

type EndpointKind int

const (
	Tcp EndpointKind = iota
	Udp
)

func (k EndpointKind) String() string {
	if k == Udp {
		return "udp"
	}
	return "tcp"
}

// Endpoint is an opaque handle for one remote peer on one channel. A logical
// player holds up to two of them, one per kind.
type Endpoint struct {
	ID   uint64
	Kind EndpointKind
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s#%d", e.Kind, e.ID)
}

// Event is the closed set of things the network can tell the server loop.
type Event interface{ isTransportEvent() }

type Connected struct{ Endpoint Endpoint }

type Disconnected struct{ Endpoint Endpoint }

type Received struct {
	Endpoint Endpoint
	Envelope protocol.Envelope
}

// DecodeError reports an undecodable frame from a connected TCP peer. The
// server reacts by closing the offending connection.
type DecodeError struct {
	Endpoint Endpoint
	Err      error
}

func (Connected) isTransportEvent()    {}
func (Disconnected) isTransportEvent() {}
func (Received) isTransportEvent()     {}
func (DecodeError) isTransportEvent()  {}

type tcpConn struct {
	conn net.Conn
	mu   sync.Mutex // guards writes
}

// Network multiplexes the TCP and UDP listeners behind endpoint handles.
type Network struct {
	listener *net.TCPListener
	udp      *net.UDPConn
	events   chan<- Event
	logger   *zap.Logger

	mu       sync.Mutex
	nextID   uint64
	tcpConns map[uint64]*tcpConn
	udpAddrs map[uint64]*net.UDPAddr
	udpIDs   map[string]uint64 // remote addr string -> endpoint id
	closed   bool
}

// Listen binds both sockets. Failure on either is fatal to startup: the
// caller is expected to log and exit.
func Listen(tcpAddr, udpAddr string, events chan<- Event, logger *zap.Logger) (*Network, error) {
	tl, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind tcp %s: %w", tcpAddr, err)
	}
	ua, err := net.ResolveUDPAddr("udp", udpAddr)
	if err != nil {
		tl.Close()
		return nil, fmt.Errorf("resolve udp %s: %w", udpAddr, err)
	}
	uc, err := net.ListenUDP("udp", ua)
	if err != nil {
		tl.Close()
		return nil, fmt.Errorf("bind udp %s: %w", udpAddr, err)
	}

	n := &Network{
		listener: tl.(*net.TCPListener),
		udp:      uc,
		events:   events,
		logger:   logger,
		nextID:   1,
		tcpConns: make(map[uint64]*tcpConn),
		udpAddrs: make(map[uint64]*net.UDPAddr),
		udpIDs:   make(map[string]uint64),
	}
	go n.acceptLoop()
	go n.udpLoop()
	return n, nil
}

// UdpPort returns the port the fast channel is bound to, for StaticInfo.
func (n *Network) UdpPort() int {
	return n.udp.LocalAddr().(*net.UDPAddr).Port
}

func (n *Network) TcpPort() int {
	return n.listener.Addr().(*net.TCPAddr).Port
}

func (n *Network) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if n.isClosed() {
				return
			}
			n.logger.Warn("tcp accept failed", zap.Error(err))
			continue
		}
		ep := n.registerTCP(conn)
		n.events <- Connected{Endpoint: ep}
		go n.readLoop(ep, conn)
	}
}

func (n *Network) registerTCP(conn net.Conn) Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.tcpConns[id] = &tcpConn{conn: conn}
	return Endpoint{ID: id, Kind: Tcp}
}

// readLoop reads length-prefixed envelopes until the peer goes away. Frames
// are 4-byte big-endian length + JSON envelope.
func (n *Network) readLoop(ep Endpoint, conn net.Conn) {
	defer func() {
		if n.forget(ep) && !n.isClosed() {
			n.events <- Disconnected{Endpoint: ep}
		}
	}()

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		size := binary.BigEndian.Uint32(header)
		if size == 0 || size > MaxFrameSize {
			n.events <- DecodeError{Endpoint: ep, Err: fmt.Errorf("frame size %d out of range", size)}
			return
		}
		frame := make([]byte, size)
		if _, err := io.ReadFull(conn, frame); err != nil {
			return
		}
		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			n.events <- DecodeError{Endpoint: ep, Err: err}
			return
		}
		n.events <- Received{Endpoint: ep, Envelope: env}
	}
}

func (n *Network) udpLoop() {
	buf := make([]byte, MaxFrameSize)
	for {
		size, addr, err := n.udp.ReadFromUDP(buf)
		if err != nil {
			if n.isClosed() {
				return
			}
			n.logger.Warn("udp read failed", zap.Error(err))
			continue
		}
		env, err := protocol.DecodeEnvelope(buf[:size])
		if err != nil {
			// No connection to close: a bad datagram is just dropped.
			n.logger.Warn("undecodable datagram dropped",
				zap.String("from", addr.String()), zap.Error(err))
			continue
		}
		n.events <- Received{Endpoint: n.udpEndpoint(addr), Envelope: env}
	}
}

// udpEndpoint maps a remote address to a stable fast-channel handle. UDP has
// no connection lifecycle, so no Connected event is emitted.
func (n *Network) udpEndpoint(addr *net.UDPAddr) Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := addr.String()
	if id, ok := n.udpIDs[key]; ok {
		return Endpoint{ID: id, Kind: Udp}
	}
	id := n.nextID
	n.nextID++
	n.udpIDs[key] = id
	n.udpAddrs[id] = addr
	return Endpoint{ID: id, Kind: Udp}
}

// Send writes one encoded envelope to the endpoint. TCP sends are framed and
// mutex-guarded; UDP sends are single datagrams.
func (n *Network) Send(ep Endpoint, payload []byte) error {
	switch ep.Kind {
	case Tcp:
		n.mu.Lock()
		tc := n.tcpConns[ep.ID]
		n.mu.Unlock()
		if tc == nil {
			return fmt.Errorf("send: unknown endpoint %s", ep)
		}
		if len(payload) > MaxFrameSize {
			return errors.New("send: frame too large")
		}
		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, uint32(len(payload)))
		tc.mu.Lock()
		defer tc.mu.Unlock()
		if _, err := tc.conn.Write(header); err != nil {
			return err
		}
		_, err := tc.conn.Write(payload)
		return err
	case Udp:
		n.mu.Lock()
		addr := n.udpAddrs[ep.ID]
		n.mu.Unlock()
		if addr == nil {
			return fmt.Errorf("send: unknown endpoint %s", ep)
		}
		_, err := n.udp.WriteToUDP(payload, addr)
		return err
	}
	return fmt.Errorf("send: unknown endpoint kind %d", ep.Kind)
}

// Remove closes a TCP connection (its reader emits Disconnected) or forgets
// a UDP address mapping.
func (n *Network) Remove(ep Endpoint) {
	switch ep.Kind {
	case Tcp:
		n.mu.Lock()
		tc := n.tcpConns[ep.ID]
		n.mu.Unlock()
		if tc != nil {
			tc.conn.Close()
		}
	case Udp:
		n.mu.Lock()
		if addr := n.udpAddrs[ep.ID]; addr != nil {
			delete(n.udpIDs, addr.String())
			delete(n.udpAddrs, ep.ID)
		}
		n.mu.Unlock()
	}
}

// forget drops a TCP endpoint from the registry, reporting whether it was
// still present (so Disconnected fires once).
func (n *Network) forget(ep Endpoint) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	tc, ok := n.tcpConns[ep.ID]
	if ok {
		tc.conn.Close()
		delete(n.tcpConns, ep.ID)
	}
	return ok
}

func (n *Network) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Shutdown closes both sockets and every live connection.
func (n *Network) Shutdown() {
	n.mu.Lock()
	n.closed = true
	conns := make([]*tcpConn, 0, len(n.tcpConns))
	for _, tc := range n.tcpConns {
		conns = append(conns, tc)
	}
	n.mu.Unlock()

	n.listener.Close()
	n.udp.Close()
	for _, tc := range conns {
		tc.conn.Close()
	}
}
