// Package diskwriter consumes a queue.ResultSink and writes each
// verified piece to its offset in the output file, persisting resume
// state and logging progress as it goes. It is the sole consumer of
// the sink: no other goroutine may touch the output file.
package diskwriter

import (
	"context"
	"fmt"
	"os"

	prettyjson "github.com/hokaccha/go-prettyjson"

	"github.com/drivasperez/torrent/logger"
	"github.com/drivasperez/torrent/piece"
	"github.com/drivasperez/torrent/queue"
	"github.com/drivasperez/torrent/store"
)

// progress is pretty-printed as JSON and logged through the Writer's
// logger after every piece written, matching the teacher's
// percent-complete console output.
type progress struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Piece   int     `json:"piece"`
	Total   int     `json:"total_pieces"`
}

// Writer owns the single output file for a torrent and writes
// verified pieces into it at their byte offset.
type Writer struct {
	file        *os.File
	pieceLength int64
	resume      *store.Store
	numPieces   int
	log         logger.Logger
}

// Open pre-allocates (truncates to final size) the output file at
// path and returns a Writer ready to consume results for a torrent of
// totalLength bytes split into numPieces pieces of pieceLength each.
func Open(path string, totalLength int64, pieceLength int64, numPieces int, resume *store.Store, log logger.Logger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskwriter: open %s: %w", path, err)
	}
	if err := f.Truncate(totalLength); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskwriter: truncate %s: %w", path, err)
	}

	return &Writer{
		file:        f,
		pieceLength: pieceLength,
		resume:      resume,
		numPieces:   numPieces,
		log:         log,
	}, nil
}

// Close releases the output file handle.
func (w *Writer) Close() error {
	return w.file.Close()
}

// Consume drains results until expected pieces have been written, the
// channel closes, or ctx is cancelled, writing each piece to its file
// offset and recording it as verified in the resume store. It returns
// the count of pieces written.
func (w *Writer) Consume(ctx context.Context, results <-chan piece.Result, name string, expected int) (int, error) {
	written := 0
	for written < expected {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return written, nil
			}
			if err := w.write(res); err != nil {
				return written, err
			}
			written++
			w.logProgress(name, res.Index, written)
		}
	}
	return written, nil
}

func (w *Writer) write(res piece.Result) error {
	offset := int64(res.Index) * w.pieceLength
	if _, err := w.file.WriteAt(res.Bytes, offset); err != nil {
		return fmt.Errorf("diskwriter: write piece %d: %w", res.Index, err)
	}
	if w.resume != nil {
		if err := w.resume.MarkVerified(res.Index, w.numPieces); err != nil {
			return fmt.Errorf("diskwriter: mark piece %d verified: %w", res.Index, err)
		}
	}
	return nil
}

// ResultSinkBacklog is how deep Consume lets results queue up behind
// a slow disk before the session goroutines feeding queue.ResultSink
// start blocking on Send.
const ResultSinkBacklog = queue.ResultSinkCapacity

func (w *Writer) logProgress(name string, index, written int) {
	p := progress{
		Name:    name,
		Percent: float64(written) / float64(w.numPieces) * 100,
		Piece:   index,
		Total:   w.numPieces,
	}
	b, err := prettyjson.Marshal(p)
	if err != nil {
		w.log.Warningf("diskwriter: format progress: %v", err)
		return
	}
	w.log.Infof("%s", string(b))
}
