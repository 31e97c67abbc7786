// Package metainfo parses bencoded .torrent files into the
// information a session needs: the announce URL, the info_hash, and
// the per-piece descriptors the orchestrator hands out as work.
package metainfo

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	bencode "github.com/jackpal/bencode-go"

	"github.com/drivasperez/torrent/piece"
)

const hashLen = 20

type rawInfo struct {
	Pieces      string `bencode:"pieces"`
	PieceLength int64  `bencode:"piece length"`
	Length      int64  `bencode:"length"`
	Name        string `bencode:"name"`
}

type rawMetainfo struct {
	Announce string  `bencode:"announce"`
	Info     rawInfo `bencode:"info"`
}

// Metainfo is the parsed contents of a .torrent file relevant to a
// download: where to announce, the info_hash peers must agree on, and
// the size/name of the single file being fetched.
type Metainfo struct {
	Announce    string
	InfoHash    [20]byte
	PieceHashes [][20]byte
	PieceLength int64
	TotalLength int64
	Name        string
}

// Parse reads a bencoded .torrent file. Only the single-file layout is
// supported; multi-file torrents are a Non-goal.
func Parse(r io.Reader) (*Metainfo, error) {
	var raw rawMetainfo
	if err := bencode.Unmarshal(r, &raw); err != nil {
		return nil, fmt.Errorf("metainfo: decode: %w", err)
	}

	infoHash, err := raw.Info.hash()
	if err != nil {
		return nil, err
	}

	pieceHashes, err := raw.Info.pieceHashes()
	if err != nil {
		return nil, err
	}

	return &Metainfo{
		Announce:    raw.Announce,
		InfoHash:    infoHash,
		PieceHashes: pieceHashes,
		PieceLength: raw.Info.PieceLength,
		TotalLength: raw.Info.Length,
		Name:        raw.Info.Name,
	}, nil
}

func (i *rawInfo) hash() ([20]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, *i); err != nil {
		return [20]byte{}, fmt.Errorf("metainfo: re-encode info dict: %w", err)
	}
	return sha1.Sum(buf.Bytes()), nil
}

func (i *rawInfo) pieceHashes() ([][20]byte, error) {
	data := []byte(i.Pieces)
	if len(data)%hashLen != 0 {
		return nil, fmt.Errorf("metainfo: pieces field has invalid length %d", len(data))
	}

	n := len(data) / hashLen
	hashes := make([][20]byte, n)
	for idx := 0; idx < n; idx++ {
		start := idx * hashLen
		copy(hashes[idx][:], data[start:start+hashLen])
	}
	return hashes, nil
}

// PieceCount reports the number of pieces the torrent is split into.
func (m *Metainfo) PieceCount() int {
	return len(m.PieceHashes)
}

// PieceLengthAt returns the byte length of the piece at index: equal
// to PieceLength except for the last piece, which absorbs whatever
// remains of TotalLength.
func (m *Metainfo) PieceLengthAt(index int) int64 {
	if index == m.PieceCount()-1 {
		return m.TotalLength - m.PieceLength*int64(m.PieceCount()-1)
	}
	return m.PieceLength
}

// Descriptors builds the full sequence of piece.Descriptor for this
// torrent, in piece-index order.
func (m *Metainfo) Descriptors() []piece.Descriptor {
	descs := make([]piece.Descriptor, m.PieceCount())
	for i, hash := range m.PieceHashes {
		descs[i] = piece.Descriptor{
			Index:        i,
			ExpectedHash: hash,
			Length:       int(m.PieceLengthAt(i)),
		}
	}
	return descs
}
