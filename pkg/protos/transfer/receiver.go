package transfer

import (
	"archive/tar"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/internal/progress"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

// Receive runs the receiver side of a session: validate the manifest, clear
// every target path, acknowledge, then materialize entries one by one.
// Previously verified entries are left in place when a later entry fails;
// the in-flight entry is always cleaned up.
func Receive(ctx context.Context, conn transport.Conn, destRoot string, l *zap.Logger) error {
	s := newSession(conn, l.Named("recv"))

	m, err := RecvManifest(ctx, conn)
	if err != nil {
		return err
	}

	s.l.Info("manifest received",
		zap.Int("entries", len(m.Entries)),
		zap.Uint64("bytes", m.TotalSize()))

	guard, err := NewGuard(destRoot)
	if err != nil {
		return err
	}

	if err := guard.CheckAll(m); err != nil {
		// tell the sender before walking away
		if ackErr := sendAck(ctx, conn, false); ackErr != nil {
			s.l.Debug("sending reject ack", zap.Error(ackErr))
		}
		conn.Close()
		return err
	}

	if err := sendAck(ctx, conn, true); err != nil {
		return fmt.Errorf("acknowledging handshake: %w", err)
	}

	bar := progress.New("receiving", int64(m.TotalSize()))
	for _, e := range m.Entries {
		s.l.Debug("receiving entry",
			zap.String("path", e.Path),
			zap.Uint64("size", e.Size),
			zap.Bool("dir", e.IsDir))

		if err := s.recvEntry(ctx, guard, e, bar); err != nil {
			return fmt.Errorf("entry %q: %w", e.Path, err)
		}
	}
	bar.Finish()

	s.l.Info("all entries received and verified")
	return nil
}

// recvEntry mirrors sendEntry: framed blocks flow through a decompressor
// whose state persists for the whole entry, every uncompressed byte feeds
// the digest and the sink, and the entry only lands at its final path once
// the digest matches the manifest.
func (s *session) recvEntry(ctx context.Context, guard *Guard, e Entry, bar *progress.Bar) error {
	// re-check right before the sink opens; the path may have appeared
	// since the handshake
	if err := guard.Check(e.Path); err != nil {
		return err
	}

	target, err := guard.Resolve(e.Path)
	if err != nil {
		return err
	}

	blocks := &blockReader{ctx: ctx, conn: s.conn}
	gz, err := gzip.NewReader(blocks)
	if err != nil {
		return classifyStreamErr(err)
	}
	defer gz.Close()

	if e.IsDir {
		return s.extractDir(gz, guard, e, target, bar)
	}
	return s.writeFile(gz, e, target, bar)
}

// writeFile streams a regular file entry into a temp file next to its
// target, verifies the digest, and only then renames it into place, so a
// failed entry never leaves a partial file under its intended name.
func (s *session) writeFile(gz io.Reader, e Entry, target string, bar *progress.Bar) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".iroh-send-"+s.id[:8]+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()

	_, err = io.Copy(io.MultiWriter(tmp, hasher, &barWriter{bar}), gz)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return classifyStreamErr(err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if sum != e.SHA256 {
		s.l.Warn("digest mismatch, discarding entry",
			zap.String("path", e.Path),
			zap.String("want", e.SHA256),
			zap.String("got", sum))
		return fmt.Errorf("%w: want %s, got %s", ErrIntegrity, e.SHA256, sum)
	}

	return os.Rename(tmpPath, target)
}

// extractDir unpacks a directory entry's tar stream into a scratch directory
// inside the destination root, then moves the finished tree into place once
// the stream digest matches the manifest.
func (s *session) extractDir(gz io.Reader, guard *Guard, e Entry, target string, bar *progress.Bar) error {
	hasher := sha256.New()
	src := io.TeeReader(gz, io.MultiWriter(hasher, &barWriter{bar}))

	scratch, err := os.MkdirTemp(guard.Root(), ".iroh-send-"+s.id[:8]+"-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return classifyStreamErr(err)
		}

		name := strings.TrimSuffix(hdr.Name, "/")
		if err := checkRelPath(name); err != nil {
			return fmt.Errorf("%w: archive member %q: %v", ErrPathTraversal, hdr.Name, err)
		}
		dest := filepath.Join(scratch, filepath.FromSlash(name))
		if !strings.HasPrefix(dest, scratch+string(filepath.Separator)) {
			return fmt.Errorf("%w: archive member %q", ErrPathTraversal, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			_, err = io.Copy(f, tr)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return classifyStreamErr(err)
			}
		default:
			s.l.Debug("skipping archive member",
				zap.String("name", hdr.Name),
				zap.Uint8("type", hdr.Typeflag))
		}
	}

	// drain archive padding so the digest covers the full stream
	if _, err := io.Copy(io.Discard, src); err != nil {
		return classifyStreamErr(err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if sum != e.SHA256 {
		s.l.Warn("digest mismatch, discarding entry",
			zap.String("path", e.Path),
			zap.String("want", e.SHA256),
			zap.String("got", sum))
		return fmt.Errorf("%w: want %s, got %s", ErrIntegrity, e.SHA256, sum)
	}

	extracted := filepath.Join(scratch, filepath.Base(target))
	if _, err := os.Lstat(extracted); err != nil {
		return fmt.Errorf("%w: archive did not contain %q", ErrStreamCorrupt, e.Path)
	}

	return os.Rename(extracted, target)
}

type barWriter struct {
	bar *progress.Bar
}

func (w *barWriter) Write(p []byte) (int, error) {
	w.bar.Add(int64(len(p)))
	return len(p), nil
}

// classifyStreamErr maps structural decompression and archive failures onto
// ErrStreamCorrupt; everything else passes through untouched.
func classifyStreamErr(err error) error {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, gzip.ErrHeader),
		errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, tar.ErrHeader),
		errors.As(err, &corrupt):
		return fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: truncated stream", ErrStreamCorrupt)
	default:
		return err
	}
}
