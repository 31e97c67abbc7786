package wire

import "bufio"

// Protocol is the ASCII protocol identifier exchanged in every
// handshake, per BEP-3.
const Protocol = "BitTorrent protocol"

// HandshakeLen is the fixed size of a handshake frame in bytes:
// 1 (length) + 19 (protocol) + 8 (reserved) + 20 (info_hash) + 20 (peer_id).
const HandshakeLen = 1 + len(Protocol) + 8 + 20 + 20

// Handshake is the fixed 68-byte opening frame establishing protocol
// and info_hash agreement between two peers.
type Handshake struct {
	ProtocolName string
	Reserved     [8]byte
	InfoHash     [20]byte
	PeerID       [20]byte
}

// NewHandshake builds a local handshake advertising no extensions.
func NewHandshake(infoHash, peerID [20]byte) Handshake {
	return Handshake{
		ProtocolName: Protocol,
		InfoHash:     infoHash,
		PeerID:       peerID,
	}
}

// Encode writes the 68-byte handshake frame.
func (h Handshake) Encode() []byte {
	buf := make([]byte, HandshakeLen)
	cursor := 0
	buf[cursor] = byte(len(Protocol))
	cursor++
	cursor += copy(buf[cursor:], Protocol)
	cursor += copy(buf[cursor:], h.Reserved[:])
	cursor += copy(buf[cursor:], h.InfoHash[:])
	copy(buf[cursor:], h.PeerID[:])
	return buf
}

// DecodeHandshake parses a handshake frame out of buf.
//
// It returns ErrNeedMore if buf does not yet hold a complete 68-byte
// frame, and ErrInvalidHandshake if the protocol-name length byte is
// not 19 ("BitTorrent protocol").
//
// A known defect in the source decoder only advanced past the length
// byte when `remaining > payload_len` (strict greater), which rejects
// a buffer holding exactly one full frame and no more. This decoder
// uses `len(buf) >= HandshakeLen` so an exactly-full buffer decodes.
func DecodeHandshake(buf []byte) (Handshake, int, error) {
	if len(buf) < 1 {
		return Handshake{}, 0, ErrNeedMore
	}
	if int(buf[0]) != len(Protocol) {
		return Handshake{}, 0, ErrInvalidHandshake
	}
	if len(buf) < HandshakeLen {
		return Handshake{}, 0, ErrNeedMore
	}

	var h Handshake
	cursor := 1
	h.ProtocolName = string(buf[cursor : cursor+len(Protocol)])
	cursor += len(Protocol)
	copy(h.Reserved[:], buf[cursor:cursor+8])
	cursor += 8
	copy(h.InfoHash[:], buf[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], buf[cursor:cursor+20])

	return h, HandshakeLen, nil
}

// ReadHandshake reads one handshake frame from r, blocking until a
// full frame is buffered.
func ReadHandshake(r *bufio.Reader) (Handshake, error) {
	first, err := r.Peek(1)
	if err != nil {
		return Handshake{}, err
	}
	if int(first[0]) != len(Protocol) {
		return Handshake{}, ErrInvalidHandshake
	}

	buf, err := r.Peek(HandshakeLen)
	if err != nil {
		return Handshake{}, err
	}

	h, n, err := DecodeHandshake(buf)
	if err != nil {
		return Handshake{}, err
	}
	if _, err := r.Discard(n); err != nil {
		return Handshake{}, err
	}
	return h, nil
}
