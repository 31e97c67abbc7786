// Package orchestrator wires together metainfo, tracker, session,
// store, and diskwriter into a single torrent download: it builds the
// work queue, skips pieces the resume store already has, dials one
// session per peer, and drains the result sink to disk until every
// piece is verified.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/drivasperez/torrent/bitfield"
	"github.com/drivasperez/torrent/diskwriter"
	"github.com/drivasperez/torrent/logger"
	"github.com/drivasperez/torrent/metainfo"
	"github.com/drivasperez/torrent/peerlist"
	"github.com/drivasperez/torrent/piece"
	"github.com/drivasperez/torrent/queue"
	"github.com/drivasperez/torrent/session"
	"github.com/drivasperez/torrent/store"
	"github.com/drivasperez/torrent/tracker"
)

// Options configures one torrent download end to end.
type Options struct {
	PeerID    [20]byte
	Port      uint16
	OutputDir string
	Session   session.Config
}

// Download drives a single torrent to completion: announce, build the
// work queue (skipping pieces the resume store already verified),
// spawn one session per discovered peer, and consume verified results
// to disk until every piece is in.
func Download(ctx context.Context, mi *metainfo.Metainfo, opts Options, log logger.Logger) error {
	resume, err := store.Open(opts.OutputDir, mi.InfoHash)
	if err != nil {
		return fmt.Errorf("orchestrator: open resume store: %w", err)
	}
	defer resume.Close()

	have, err := resume.Load(mi.PieceCount())
	if err != nil {
		return fmt.Errorf("orchestrator: load resume state: %w", err)
	}

	descriptors := pendingDescriptors(mi.Descriptors(), have)
	if len(descriptors) == 0 {
		log.Noticef("%s: all %d pieces already verified", mi.Name, mi.PieceCount())
		return nil
	}
	log.Infof("%s: %d/%d pieces remaining", mi.Name, len(descriptors), mi.PieceCount())

	trackerClient := tracker.NewClient(opts.PeerID, opts.Port)
	var left int64
	for _, d := range descriptors {
		left += int64(d.Length)
	}
	resp, err := trackerClient.Announce(mi.Announce, mi.InfoHash, left)
	if err != nil {
		return fmt.Errorf("orchestrator: announce: %w", err)
	}
	if len(resp.Peers) == 0 {
		return fmt.Errorf("orchestrator: tracker returned no peers")
	}

	workQueue := queue.NewWorkQueue(descriptors)
	sink := queue.NewResultSink()

	for _, p := range resp.Peers {
		go runSession(p, opts.PeerID, mi.InfoHash, workQueue, sink, opts.Session, log)
	}

	outPath := filepath.Join(opts.OutputDir, mi.Name)
	writer, err := diskwriter.Open(outPath, mi.TotalLength, mi.PieceLength, mi.PieceCount(), resume, log)
	if err != nil {
		return fmt.Errorf("orchestrator: open output file: %w", err)
	}
	defer writer.Close()

	remaining := len(descriptors)
	written, err := writer.Consume(ctx, sink.Results(), mi.Name, remaining)
	if err != nil {
		return fmt.Errorf("orchestrator: consume results: %w", err)
	}
	workQueue.Close()

	if written < remaining {
		return fmt.Errorf("orchestrator: stopped after %d/%d pieces", written, remaining)
	}
	log.Noticef("%s: download complete", mi.Name)
	return nil
}

// runSession runs a single peer's session to completion, logging
// (rather than propagating) its terminal error: one peer's failure
// never aborts the download as long as others keep the queue moving.
func runSession(p peerlist.Peer, peerID, infoHash [20]byte, wq *queue.WorkQueue, sink *queue.ResultSink, cfg session.Config, log logger.Logger) {
	s := session.NewWithConfig(p, peerID, infoHash, wq, sink, log, cfg)
	if err := s.Run(); err != nil {
		log.Debugf("session with %s ended: %v", p, err)
	}
}

// pendingDescriptors filters out pieces the resume bitfield already
// has verified.
func pendingDescriptors(all []piece.Descriptor, have bitfield.Bitfield) []piece.Descriptor {
	pending := make([]piece.Descriptor, 0, len(all))
	for _, d := range all {
		if !have.Has(d.Index) {
			pending = append(pending, d)
		}
	}
	return pending
}
