package tracker

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	bencode "github.com/jackpal/bencode-go"
)

func TestAnnounceDecodesPeersAndInterval(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		bencode.Marshal(w, response{
			Interval: 1800,
			Peers:    string([]byte{127, 0, 0, 1, 0x1A, 0xE1}),
		})
	}))
	defer srv.Close()

	c := NewClient([20]byte{1, 2, 3}, 6881)
	resp, err := c.Announce(srv.URL+"/announce", [20]byte{0x11}, 100)
	if err != nil {
		t.Fatalf("Announce: %v", err)
	}

	if resp.Interval.Seconds() != 1800 {
		t.Fatalf("expected 1800s interval, got %v", resp.Interval)
	}
	if len(resp.Peers) != 1 || resp.Peers[0].String() != "127.0.0.1:6881" {
		t.Fatalf("unexpected peers: %+v", resp.Peers)
	}
	if gotQuery.Get("compact") != "1" {
		t.Fatalf("expected compact=1 in announce query")
	}
	if gotQuery.Get("left") != "100" {
		t.Fatalf("expected left=100, got %s", gotQuery.Get("left"))
	}
}

func TestBuildURLPercentEncodesInfoHashAndPeerID(t *testing.T) {
	c := NewClient([20]byte{0xAB, 0xCD}, 6881)
	infoHash := [20]byte{0x11, 0x22}

	got, err := c.buildURL("http://tracker.example.com/announce", infoHash, 0)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	if !containsSub(got, "info_hash=%11%22") {
		t.Fatalf("expected percent-encoded info_hash in %s", got)
	}
	if !containsSub(got, "peer_id=%AB%CD") {
		t.Fatalf("expected percent-encoded peer_id in %s", got)
	}
}

func TestAnnounceRejectsNonHTTPScheme(t *testing.T) {
	c := NewClient([20]byte{}, 6881)
	_, err := c.Announce("udp://tracker.example.com:80/announce", [20]byte{}, 0)
	if err == nil {
		t.Fatal("expected error for udp scheme")
	}
}

func containsSub(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
