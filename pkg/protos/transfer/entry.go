package transfer

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// source binds a manifest entry to its on-disk origin on the sender.
type source struct {
	abs   string
	entry Entry
}

// open yields the entry's logical content: raw bytes for a regular file, a
// lazily built tar stream for a directory. Nothing is staged on disk.
func (s source) open() (io.ReadCloser, error) {
	if s.entry.IsDir {
		return tarStream(s.abs, s.entry.Path), nil
	}
	return os.Open(s.abs)
}

// scanSources builds the manifest for the given paths. Sizes and digests are
// computed up front (for directories via a full pre-pass over the tar stream)
// so the manifest commits both sides to the transfer before any data moves.
func scanSources(paths []string, chunkSize uint32) (*Manifest, []source, error) {
	entries := make([]Entry, 0, len(paths))
	sources := make([]source, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %q: %w", p, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, nil, fmt.Errorf("not found: %s", p)
		}

		base := filepath.Base(abs)

		var e Entry
		if info.IsDir() {
			sum, size, err := digestOf(tarStream(abs, base))
			if err != nil {
				return nil, nil, fmt.Errorf("scanning directory %q: %w", p, err)
			}
			e = Entry{Path: base, Size: size, IsDir: true, SHA256: sum, ChunkSize: chunkSize}
		} else {
			f, err := os.Open(abs)
			if err != nil {
				return nil, nil, fmt.Errorf("opening %q: %w", p, err)
			}
			sum, size, err := digestOf(f)
			f.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("hashing %q: %w", p, err)
			}
			e = Entry{Path: base, Size: size, IsDir: false, SHA256: sum, ChunkSize: chunkSize}
		}

		entries = append(entries, e)
		sources = append(sources, source{abs: abs, entry: e})
	}

	m := &Manifest{Version: ProtocolVersion, Entries: entries}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	return m, sources, nil
}

// tarStream produces the archive bytes for a directory subtree, headers and
// content interleaved, rooted at base. The walk is lexical, so two passes
// over an unchanged tree produce identical bytes.
func tarStream(absDir, base string) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)

		err := filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			if !d.IsDir() && !info.Mode().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(absDir, p)
			if err != nil {
				return err
			}
			name := base
			if rel != "." {
				name = path.Join(base, filepath.ToSlash(rel))
			}

			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = name
			if d.IsDir() {
				hdr.Name += "/"
			}

			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			f, err := os.Open(p)
			if err != nil {
				return err
			}
			_, err = io.Copy(tw, f)
			f.Close()
			return err
		})
		if err != nil {
			pw.CloseWithError(err)
			return
		}

		if err := tw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return pr
}

// digestOf consumes a stream and returns its lowercase hex SHA-256 digest
// and byte count.
func digestOf(r io.Reader) (string, uint64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), uint64(n), nil
}
