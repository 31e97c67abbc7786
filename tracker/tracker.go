// Package tracker announces a download to an HTTP tracker and decodes
// the bencoded response into a peer list.
package tracker

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bencode "github.com/jackpal/bencode-go"

	"github.com/drivasperez/torrent/peerlist"
)

// requestTimeout bounds the whole announce round-trip.
const requestTimeout = 15 * time.Second

type response struct {
	Interval int    `bencode:"interval"`
	Peers    string `bencode:"peers"`
}

// Response is an announce's useful result: how long to wait before
// re-announcing, and the peers to try.
type Response struct {
	Interval time.Duration
	Peers    []peerlist.Peer
}

// Client announces torrents to their tracker over HTTP(S). UDP
// trackers are a Non-goal.
type Client struct {
	httpClient *http.Client
	peerID     [20]byte
	port       uint16
}

// NewClient builds a tracker Client. peerID identifies this node to
// trackers and peers; port is the local port advertised in the
// announce.
func NewClient(peerID [20]byte, port uint16) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		peerID:     peerID,
		port:       port,
	}
}

// Announce requests a peer list for the torrent identified by
// infoHash/length from announceURL.
func (c *Client) Announce(announceURL string, infoHash [20]byte, left int64) (*Response, error) {
	reqURL, err := c.buildURL(announceURL, infoHash, left)
	if err != nil {
		return nil, fmt.Errorf("tracker: build announce url: %w", err)
	}

	resp, err := c.httpClient.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("tracker: announce: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker: announce: unexpected status %s", resp.Status)
	}

	var raw response
	if err := bencode.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("tracker: decode response: %w", err)
	}

	peers, err := peerlist.Unmarshal([]byte(raw.Peers))
	if err != nil {
		return nil, fmt.Errorf("tracker: decode peers: %w", err)
	}

	return &Response{
		Interval: time.Duration(raw.Interval) * time.Second,
		Peers:    peers,
	}, nil
}

func (c *Client) buildURL(announceURL string, infoHash [20]byte, left int64) (string, error) {
	base, err := url.Parse(announceURL)
	if err != nil {
		return "", err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("unsupported tracker scheme %q", base.Scheme)
	}

	params := url.Values{
		"port":       []string{strconv.Itoa(int(c.port))},
		"uploaded":   []string{"0"},
		"downloaded": []string{"0"},
		"compact":    []string{"1"},
		"left":       []string{strconv.FormatInt(left, 10)},
	}
	base.RawQuery = params.Encode()
	base.RawQuery += "&info_hash=" + percentEncode(infoHash[:])
	base.RawQuery += "&peer_id=" + percentEncode(c.peerID[:])
	return base.String(), nil
}

// percentEncode encodes raw bytes the way BEP-3 requires for
// info_hash/peer_id: every byte escaped, including the unreserved
// ASCII bytes that url.Values.Encode would leave alone.
func percentEncode(b []byte) string {
	res := make([]byte, 0, len(b)*3)
	const hex = "0123456789ABCDEF"
	for _, v := range b {
		res = append(res, '%', hex[v>>4], hex[v&0x0f])
	}
	return string(res)
}
