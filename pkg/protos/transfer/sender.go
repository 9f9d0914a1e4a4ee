package transfer

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/internal/progress"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

// Send runs the sender side of a session: scan the paths, commit to a
// manifest, await the receiver's acknowledgement, then stream every entry.
// Any failure aborts the whole session; there are no mid-transfer retries.
func Send(ctx context.Context, conn transport.Conn, paths []string, chunkSize uint32, l *zap.Logger) error {
	s := newSession(conn, l.Named("send"))

	m, sources, err := scanSources(paths, chunkSize)
	if err != nil {
		return err
	}

	s.l.Info("manifest ready",
		zap.Int("entries", len(m.Entries)),
		zap.Uint64("bytes", m.TotalSize()))

	if err := SendManifest(ctx, conn, m); err != nil {
		return fmt.Errorf("sending manifest: %w", err)
	}

	if err := awaitAck(ctx, conn); err != nil {
		return err
	}

	bar := progress.New("sending", int64(m.TotalSize()))
	for _, src := range sources {
		s.l.Debug("sending entry",
			zap.String("path", src.entry.Path),
			zap.Uint64("size", src.entry.Size),
			zap.Bool("dir", src.entry.IsDir))

		if err := s.sendEntry(ctx, src, bar); err != nil {
			return fmt.Errorf("entry %q: %w", src.entry.Path, err)
		}
	}
	bar.Finish()

	s.l.Info("all entries sent")
	return nil
}

// sendEntry streams one entry as framed compressed blocks. The gzip state
// persists across the windows of the entry so compression benefits from
// cross-chunk context; the digest runs over the uncompressed bytes so it is
// comparable regardless of compression parameters.
func (s *session) sendEntry(ctx context.Context, src source, bar *progress.Bar) error {
	rc, err := src.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	hasher := sha256.New()

	var block bytes.Buffer
	gz := gzip.NewWriter(&block)

	buf := make([]byte, src.entry.ChunkSize)
	for {
		n, err := io.ReadFull(rc, buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if _, werr := gz.Write(buf[:n]); werr != nil {
				return werr
			}
			if werr := gz.Flush(); werr != nil {
				return werr
			}
			if serr := s.conn.Send(ctx, block.Bytes()); serr != nil {
				return serr
			}
			block.Reset()
			bar.Add(int64(n))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
	}

	// trailing compressor state, then the end-of-entry marker
	if err := gz.Close(); err != nil {
		return err
	}
	if err := s.conn.Send(ctx, block.Bytes()); err != nil {
		return err
	}
	if err := s.conn.Send(ctx, nil); err != nil {
		return err
	}

	sum := fmt.Sprintf("%x", hasher.Sum(nil))
	if sum != src.entry.SHA256 {
		// source changed between the manifest pre-pass and the stream
		return fmt.Errorf("%w: source modified during transfer", ErrIntegrity)
	}

	return nil
}
