package transfer

import (
	"fmt"
	"path"
	"strings"

	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

// ProtocolVersion is checked during the handshake; both ends must match
// exactly or the session never starts.
const ProtocolVersion = 3

// Entry describes one file or one directory subtree within a manifest.
// Directory entries travel as a single gzip-compressed tar stream; Size and
// SHA256 refer to the uncompressed tar bytes.
type Entry struct {
	Path      string `json:"path"`
	Size      uint64 `json:"size"`
	IsDir     bool   `json:"is_dir"`
	SHA256    string `json:"sha256"`
	ChunkSize uint32 `json:"chunk_size"`
}

// Manifest is authored by the sender, transmitted once, and treated as
// read-only ground truth by the receiver for the rest of the session.
// Entry order is transfer order.
type Manifest struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// TotalSize returns the uncompressed byte count across all entries.
func (m *Manifest) TotalSize() uint64 {
	var total uint64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}

// Validate checks the structural invariants of a received manifest. The
// version is checked first, before anything else is trusted.
func (m *Manifest) Validate() error {
	if m.Version != ProtocolVersion {
		return fmt.Errorf("%w: version mismatch: local %d, remote %d",
			ErrProtocol, ProtocolVersion, m.Version)
	}

	if len(m.Entries) == 0 {
		return fmt.Errorf("%w: manifest has no entries", ErrProtocol)
	}

	seen := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		if err := checkRelPath(e.Path); err != nil {
			return fmt.Errorf("%w: entry %q: %v", ErrProtocol, e.Path, err)
		}
		if _, dup := seen[e.Path]; dup {
			return fmt.Errorf("%w: duplicate entry path %q", ErrProtocol, e.Path)
		}
		seen[e.Path] = struct{}{}

		if len(e.SHA256) != 64 {
			return fmt.Errorf("%w: entry %q: malformed digest", ErrProtocol, e.Path)
		}
		if e.ChunkSize == 0 {
			return fmt.Errorf("%w: entry %q: zero chunk size", ErrProtocol, e.Path)
		}
		if e.ChunkSize > transport.MaxChunkSize {
			return fmt.Errorf("%w: entry %q: chunk size %d exceeds %d",
				ErrProtocol, e.Path, e.ChunkSize, transport.MaxChunkSize)
		}
	}

	return nil
}

// checkRelPath enforces the invariants for manifest paths: posix style,
// relative, no traversal segments.
func checkRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("absolute path")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("non-posix separator")
	}
	for _, seg := range strings.Split(path.Clean(p), "/") {
		if seg == ".." {
			return fmt.Errorf("traversal segment")
		}
	}
	return nil
}
