package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard gates receiver-side writes: every manifest path must resolve inside
// the destination root and must not already exist. It runs once over the full
// manifest before the handshake is acknowledged, and again per entry right
// before the sink is opened, covering the gap between check and use.
type Guard struct {
	root string
}

func NewGuard(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving destination root: %w", err)
	}
	return &Guard{root: abs}, nil
}

// Resolve maps a manifest path to an absolute target path, rejecting any
// resolution that escapes the root.
func (g *Guard) Resolve(rel string) (string, error) {
	if err := checkRelPath(rel); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrPathTraversal, rel, err)
	}

	target := filepath.Join(g.root, filepath.FromSlash(rel))
	if target != g.root && !strings.HasPrefix(target, g.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, rel)
	}

	return target, nil
}

// Check reports ErrConflict when the resolved path already exists as a file,
// directory, or symlink.
func (g *Guard) Check(rel string) error {
	target, err := g.Resolve(rel)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("%w: %q", ErrConflict, rel)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %q: %w", rel, err)
	}

	return nil
}

// CheckAll runs Check over every manifest entry, pre-flight.
func (g *Guard) CheckAll(m *Manifest) error {
	for _, e := range m.Entries {
		if err := g.Check(e.Path); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the absolute destination root.
func (g *Guard) Root() string {
	return g.root
}
