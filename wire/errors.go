package wire

import "errors"

// ErrNeedMore is returned by the Decode* functions when the supplied
// buffer does not yet contain a complete frame. Callers feeding a live
// connection should buffer more bytes and retry; it is never returned
// by the Read* functions, which block on the underlying reader instead.
var ErrNeedMore = errors.New("wire: need more bytes")

// ErrInvalidHandshake is returned when the handshake's protocol-name
// length byte does not match the expected "BitTorrent protocol" (19).
var ErrInvalidHandshake = errors.New("wire: invalid handshake protocol header")

// ErrInvalidMessage is returned for an unrecognized message id.
var ErrInvalidMessage = errors.New("wire: invalid message id")
