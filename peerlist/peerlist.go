// Package peerlist holds the Peer address type shared by the tracker
// client and the session package, and decodes the tracker's compact
// peer format.
package peerlist

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// Peer is a remote peer's dialable TCP address.
type Peer struct {
	IP   net.IP
	Port uint16
}

// String renders the peer as a "host:port" dial target.
func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// peerSize is the width of one compact peer record: 4-byte IPv4 plus
// 2-byte big-endian port (BEP-23).
const peerSize = 6

// Unmarshal decodes a tracker's compact peer list.
func Unmarshal(compact []byte) ([]Peer, error) {
	if len(compact)%peerSize != 0 {
		return nil, fmt.Errorf("peerlist: malformed compact peer list of length %d", len(compact))
	}

	n := len(compact) / peerSize
	peers := make([]Peer, n)
	for i := 0; i < n; i++ {
		offset := i * peerSize
		ip := make(net.IP, 4)
		copy(ip, compact[offset:offset+4])
		peers[i] = Peer{
			IP:   ip,
			Port: binary.BigEndian.Uint16(compact[offset+4 : offset+6]),
		}
	}
	return peers, nil
}
