// Package session implements the per-peer protocol state machine:
// connect, handshake, bitfield exchange, choke/interest negotiation,
// pipelined block requests, piece assembly, verification, and
// requeue-or-emit.
package session

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/drivasperez/torrent/bitfield"
	"github.com/drivasperez/torrent/logger"
	"github.com/drivasperez/torrent/peerlist"
	"github.com/drivasperez/torrent/piece"
	"github.com/drivasperez/torrent/queue"
	"github.com/drivasperez/torrent/stream"
	"github.com/drivasperez/torrent/wire"
)

// Config bounds the session's timing and pipelining behavior.
type Config struct {
	MaxBlockSize     int
	MaxBacklog       int
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	BitfieldTimeout  time.Duration
	ReceiveTimeout   time.Duration
}

// DefaultConfig matches the constants fixed by the wire protocol and
// the source implementation: 16 KiB blocks, 5 in-flight requests per
// piece, and a 30 s receive timeout.
func DefaultConfig() Config {
	return Config{
		MaxBlockSize:     16384,
		MaxBacklog:       5,
		DialTimeout:      3 * time.Second,
		HandshakeTimeout: 3 * time.Second,
		BitfieldTimeout:  5 * time.Second,
		ReceiveTimeout:   30 * time.Second,
	}
}

// peerSessionState is mutated only by the owning session's goroutine
// in response to received messages; it requires no synchronization.
type peerSessionState struct {
	amChoked       bool
	amInterested   bool
	remoteBitfield bitfield.Bitfield
}

// assembly tracks one piece attempt within one session. It is created
// on each successful pop and discarded after emit or requeue.
type assembly struct {
	index      int
	length     int
	buf        []byte
	downloaded int
	requested  int
	backlog    int
}

// Session is one peer task: it owns a single TCP connection for its
// entire lifetime and is the exclusive writer of its peerSessionState.
type Session struct {
	peer        peerlist.Peer
	localPeerID [20]byte
	infoHash    [20]byte
	workQueue   *queue.WorkQueue
	sink        *queue.ResultSink
	log         logger.Logger
	config      Config

	state peerSessionState
}

// New constructs a Session for one peer using DefaultConfig. The
// returned Session does not dial until Run is called.
func New(peer peerlist.Peer, localPeerID, infoHash [20]byte, wq *queue.WorkQueue, sink *queue.ResultSink, log logger.Logger) *Session {
	return NewWithConfig(peer, localPeerID, infoHash, wq, sink, log, DefaultConfig())
}

// NewWithConfig constructs a Session with caller-supplied timing and
// pipelining bounds, e.g. as loaded from config.Config.Session.
func NewWithConfig(peer peerlist.Peer, localPeerID, infoHash [20]byte, wq *queue.WorkQueue, sink *queue.ResultSink, log logger.Logger, cfg Config) *Session {
	return &Session{
		peer:        peer,
		localPeerID: localPeerID,
		infoHash:    infoHash,
		workQueue:   wq,
		sink:        sink,
		log:         log,
		config:      cfg,
		state:       peerSessionState{amChoked: true},
	}
}

// Run drives the full state machine: Connecting -> Handshaking ->
// AwaitingBitfield -> Working. It returns nil on a clean shutdown
// (work queue closed) and a *Error otherwise. Run owns its
// connection for its whole lifetime and always closes it before
// returning.
func (s *Session) Run() error {
	conn, err := net.DialTimeout("tcp", s.peer.String(), s.config.DialTimeout)
	if err != nil {
		return wrap(ConnectError, err)
	}

	mc, err := s.handshake(conn)
	if err != nil {
		conn.Close()
		return err
	}
	defer mc.Close()

	if err := s.awaitBitfield(mc); err != nil {
		return err
	}

	return s.work(mc)
}

func (s *Session) handshake(conn net.Conn) (*stream.MessageConn, error) {
	hc := stream.NewHandshakeConn(conn)

	if err := hc.SetDeadline(time.Now().Add(s.config.HandshakeTimeout)); err != nil {
		return nil, wrap(HandshakeFormat, err)
	}
	defer hc.SetDeadline(time.Time{})

	if err := hc.SendHandshake(wire.NewHandshake(s.infoHash, s.localPeerID)); err != nil {
		return nil, wrap(HandshakeFormat, err)
	}

	remote, err := hc.ReadHandshake()
	if err != nil {
		return nil, wrap(HandshakeFormat, err)
	}
	if remote.InfoHash != s.infoHash {
		return nil, wrap(HashMismatch, fmt.Errorf("expected info_hash %x, got %x", s.infoHash, remote.InfoHash))
	}

	return stream.Upgrade(hc), nil
}

func (s *Session) awaitBitfield(mc *stream.MessageConn) error {
	if err := mc.SetReadDeadline(time.Now().Add(s.config.BitfieldTimeout)); err != nil {
		return wrap(ProtocolViolation, err)
	}
	defer mc.SetReadDeadline(time.Time{})

	msg, err := mc.Read()
	if err != nil {
		return wrap(ProtocolViolation, err)
	}
	if msg == nil || msg.ID != wire.BitfieldID {
		return wrap(ProtocolViolation, fmt.Errorf("expected Bitfield as first message, got %v", msg))
	}

	payload := make(bitfield.Bitfield, len(msg.Payload))
	copy(payload, msg.Payload)
	s.state.remoteBitfield = payload
	return nil
}

func (s *Session) work(mc *stream.MessageConn) error {
	if err := mc.Send(wire.NewUnchoke()); err != nil {
		return wrap(ProtocolViolation, err)
	}
	if err := mc.Send(wire.NewInterested()); err != nil {
		return wrap(ProtocolViolation, err)
	}

	for {
		w, ok := s.workQueue.Pop()
		if !ok {
			return nil
		}
		if err := s.handlePiece(mc, w); err != nil {
			return err
		}
	}
}

// handlePiece pops one piece's worth of work through to either a
// requeue or an emit. Any non-emitting exit requeues the descriptor
// exactly once: a piece the peer lacks is pushed back directly, and a
// failed download, failed verification, or any other error is pushed
// back by the deferred guard below. This closes
// the upstream source's leak, where a mid-attempt failure could drop
// a descriptor permanently.
func (s *Session) handlePiece(mc *stream.MessageConn, w piece.Descriptor) (err error) {
	if !s.state.remoteBitfield.Has(w.Index) {
		s.workQueue.Push(w)
		return nil
	}

	emitted := false
	defer func() {
		if !emitted {
			s.workQueue.Push(w)
		}
	}()

	buf, err := s.attemptDownload(mc, w)
	if err != nil {
		return err
	}

	if !w.Verify(buf) {
		s.log.Warningf("piece %d failed integrity check from %s", w.Index, s.peer)
		return nil
	}

	if err := mc.Send(wire.NewHave(uint32(w.Index))); err != nil {
		return wrap(ProtocolViolation, err)
	}

	s.sink.Send(piece.Result{Index: w.Index, Bytes: buf})
	emitted = true
	return nil
}

func (s *Session) attemptDownload(mc *stream.MessageConn, w piece.Descriptor) ([]byte, error) {
	a := &assembly{index: w.Index, length: w.Length, buf: make([]byte, w.Length)}

	for a.downloaded < a.length {
		for !s.state.amChoked && a.backlog < s.config.MaxBacklog && a.requested < a.length {
			block := s.config.MaxBlockSize
			if a.length-a.requested < block {
				block = a.length - a.requested
			}

			req := wire.NewRequest(uint32(w.Index), uint32(a.requested), uint32(block))
			if err := mc.Send(req); err != nil {
				return nil, wrap(ProtocolViolation, err)
			}
			a.requested += block
			a.backlog++
		}

		if err := s.readMessage(mc, a); err != nil {
			return nil, err
		}
	}

	return a.buf, nil
}

// readMessage receives one non-KeepAlive message and dispatches it,
// updating either the session's state or the in-progress assembly.
func (s *Session) readMessage(mc *stream.MessageConn, a *assembly) error {
	for {
		if err := mc.SetReadDeadline(time.Now().Add(s.config.ReceiveTimeout)); err != nil {
			return wrap(ProtocolViolation, err)
		}

		msg, err := mc.Read()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return wrap(Timeout, err)
			}
			return wrap(ProtocolViolation, err)
		}

		if msg == nil {
			continue // KeepAlive
		}

		switch msg.ID {
		case wire.Choke:
			s.state.amChoked = true
		case wire.Unchoke:
			s.state.amChoked = false
		case wire.Have:
			idx, ok := msg.ParseHave()
			if !ok {
				return wrap(ProtocolViolation, fmt.Errorf("malformed Have message"))
			}
			s.state.remoteBitfield.Set(int(idx))
		case wire.BitfieldID:
			payload := make(bitfield.Bitfield, len(msg.Payload))
			copy(payload, msg.Payload)
			s.state.remoteBitfield = payload
		case wire.Request, wire.Cancel:
			// We do not seed; these are ignored.
		case wire.Piece:
			if err := s.applyPiece(msg, a); err != nil {
				return err
			}
		default:
			return wrap(ProtocolViolation, fmt.Errorf("unexpected message id %v", msg.ID))
		}

		return nil
	}
}

func (s *Session) applyPiece(msg *wire.Message, a *assembly) error {
	idx, begin, data, ok := msg.ParsePiece()
	if !ok {
		return wrap(ProtocolViolation, fmt.Errorf("malformed Piece message"))
	}
	if int(idx) != a.index {
		return wrap(PieceMismatch, fmt.Errorf("expected piece %d, got %d", a.index, idx))
	}

	b := int(begin)
	if b > len(a.buf) || b+len(data) > len(a.buf) {
		return wrap(PieceOverflow, fmt.Errorf("begin %d + len %d exceeds piece length %d", b, len(data), len(a.buf)))
	}

	copy(a.buf[b:], data)
	a.downloaded += len(data)
	a.backlog--
	return nil
}
