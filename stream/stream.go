// Package stream models the one-way conversion of a peer connection
// from handshake framing to message framing.
//
// A connection starts in handshake framing and transitions, once, to
// message framing. The switch is modeled as a typed transformation,
// HandshakeConn -> MessageConn, consuming the former: there is no
// sum-typed "either handshake or message" wrapper with take/replace
// semantics, which would invite unreachable branches and
// partial-move hazards. The underlying net.Conn and its buffered
// reader are threaded through unchanged, so any bytes the peer has
// already sent past the handshake (pipelined messages) are not lost.
package stream

import (
	"bufio"
	"net"
	"time"

	"github.com/drivasperez/torrent/wire"
)

// HandshakeConn is a connection still in the 68-byte fixed handshake
// phase.
type HandshakeConn struct {
	conn net.Conn
	r    *bufio.Reader
}

// NewHandshakeConn wraps conn for handshake-phase framing.
func NewHandshakeConn(conn net.Conn) *HandshakeConn {
	return &HandshakeConn{conn: conn, r: bufio.NewReader(conn)}
}

// SendHandshake writes the local handshake frame.
func (c *HandshakeConn) SendHandshake(h wire.Handshake) error {
	_, err := c.conn.Write(h.Encode())
	return err
}

// ReadHandshake reads one handshake frame from the peer.
func (c *HandshakeConn) ReadHandshake() (wire.Handshake, error) {
	return wire.ReadHandshake(c.r)
}

// SetDeadline sets the read/write deadline for the handshake phase.
func (c *HandshakeConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close closes the underlying connection.
func (c *HandshakeConn) Close() error {
	return c.conn.Close()
}

// MessageConn is a connection that has completed the handshake and
// now exchanges length-prefixed peer wire messages.
type MessageConn struct {
	conn net.Conn
	r    *bufio.Reader
}

// Upgrade consumes a HandshakeConn and returns a MessageConn that
// reuses the same underlying connection and its buffered, unread
// bytes.
func Upgrade(c *HandshakeConn) *MessageConn {
	return &MessageConn{conn: c.conn, r: c.r}
}

// Send writes one message frame. A nil *wire.Message sends KeepAlive.
func (c *MessageConn) Send(m *wire.Message) error {
	_, err := c.conn.Write(m.Encode())
	return err
}

// Read reads one message frame, blocking until a complete frame is
// buffered.
func (c *MessageConn) Read() (*wire.Message, error) {
	return wire.ReadMessage(c.r)
}

// SetReadDeadline sets the read deadline used by Read.
func (c *MessageConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// RemoteAddr returns the remote peer's network address.
func (c *MessageConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *MessageConn) Close() error {
	return c.conn.Close()
}
