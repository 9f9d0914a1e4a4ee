package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/internal/progress"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

func newTestBar() *progress.Bar {
	return progress.New("test", 1)
}

// runSession wires a sender and a receiver over an in-memory pipe and runs a
// whole session. mutate, when non-nil, rewrites the sender's outbound records
// to simulate in-transit corruption.
func runSession(t *testing.T, paths []string, destDir string, chunkSize uint32, mutate func(i int, p []byte) []byte) (sendErr, recvErr error) {
	t.Helper()

	a, b := net.Pipe()
	sconn := transport.Conn(transport.NewConn(a))
	rconn := transport.NewConn(b)

	if mutate != nil {
		sconn = &mutatingConn{Conn: sconn, mutate: mutate}
	}

	logger := zap.NewNop()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		err := Send(ctx, sconn, paths, chunkSize, logger)
		sconn.Close()
		done <- err
	}()

	recvErr = Receive(ctx, rconn, destDir, logger)
	rconn.Close()
	sendErr = <-done
	return sendErr, recvErr
}

type mutatingConn struct {
	transport.Conn
	n      int
	mutate func(i int, p []byte) []byte
}

func (c *mutatingConn) Send(ctx context.Context, p []byte) error {
	c.n++
	return c.Conn.Send(ctx, c.mutate(c.n, p))
}

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

// patterned test payload, incompressible enough to span several blocks
func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i>>8)
	}
	return b
}

func TestRoundTripChunkSizes(t *testing.T) {
	data := payload(10_000)

	for _, chunk := range []uint32{1, 3, 1024, 64 * 1024} {
		src := t.TempDir()
		dst := t.TempDir()
		p := writeTestFile(t, src, "data.bin", data)

		sendErr, recvErr := runSession(t, []string{p}, dst, chunk, nil)
		assert.NoError(t, sendErr, "chunk %d", chunk)
		assert.NoError(t, recvErr, "chunk %d", chunk)

		got, err := os.ReadFile(filepath.Join(dst, "data.bin"))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, got), "chunk %d", chunk)
	}
}

func TestRoundTripEmptyFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	p := writeTestFile(t, src, "empty", nil)

	sendErr, recvErr := runSession(t, []string{p}, dst, 1024, nil)
	assert.NoError(t, sendErr)
	assert.NoError(t, recvErr)

	info, err := os.Stat(filepath.Join(dst, "empty"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestRoundTripDirectory(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	dir := filepath.Join(src, "project")
	writeTestFile(t, dir, "one.txt", []byte("first file\n"))
	writeTestFile(t, dir, "sub/two.txt", payload(5_000))

	sendErr, recvErr := runSession(t, []string{dir}, dst, 2048, nil)
	assert.NoError(t, sendErr)
	assert.NoError(t, recvErr)

	one, err := os.ReadFile(filepath.Join(dst, "project", "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first file\n"), one)

	two, err := os.ReadFile(filepath.Join(dst, "project", "sub", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, payload(5_000), two)
}

func TestRoundTripMixedEntries(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	f := writeTestFile(t, src, "single.txt", []byte("alone"))
	dir := filepath.Join(src, "tree")
	writeTestFile(t, dir, "leaf", []byte("leafdata"))

	sendErr, recvErr := runSession(t, []string{f, dir}, dst, 1024, nil)
	assert.NoError(t, sendErr)
	assert.NoError(t, recvErr)

	assert.FileExists(t, filepath.Join(dst, "single.txt"))
	assert.FileExists(t, filepath.Join(dst, "tree", "leaf"))
}

func TestConflictRejectsHandshake(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	p := writeTestFile(t, src, "clash.txt", []byte("incoming"))
	existing := writeTestFile(t, dst, "clash.txt", []byte("precious"))

	sendErr, recvErr := runSession(t, []string{p}, dst, 1024, nil)
	assert.ErrorIs(t, recvErr, ErrConflict)
	assert.ErrorIs(t, sendErr, ErrRemoteRejected)

	// the pre-existing file is untouched
	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), got)

	// and nothing else was written
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCorruptedBlockAbortsSession(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	p := writeTestFile(t, src, "big.bin", payload(200_000))

	// record 1 is the manifest; flip a byte in an early data block
	mutate := func(i int, rec []byte) []byte {
		if i != 3 || len(rec) < 16 {
			return rec
		}
		q := append([]byte(nil), rec...)
		q[len(q)/2] ^= 0xff
		return q
	}

	sendErr, recvErr := runSession(t, []string{p}, dst, 16*1024, mutate)
	_ = sendErr // sender may fail on the closed pipe or finish first

	if !errors.Is(recvErr, ErrStreamCorrupt) && !errors.Is(recvErr, ErrIntegrity) {
		t.Fatalf("want stream corruption or integrity failure, got %v", recvErr)
	}

	// no file, partial or otherwise, at the intended final path
	_, err := os.Stat(filepath.Join(dst, "big.bin"))
	assert.True(t, os.IsNotExist(err))

	// no stray temp files either
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPathAppearingMidSessionAborts(t *testing.T) {
	// the per-entry re-check catches a path that appears between the
	// handshake and the entry's sink being opened
	dst := t.TempDir()
	guard, err := NewGuard(dst)
	require.NoError(t, err)

	writeTestFile(t, dst, "late.bin", []byte("squatter"))

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	s := newSession(transport.NewConn(b), zap.NewNop())

	e := Entry{Path: "late.bin", Size: 8, SHA256: validManifest().Entries[0].SHA256, ChunkSize: 1024}
	err = s.recvEntry(context.Background(), guard, e, newTestBar())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBlockReader(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := transport.NewConn(a), transport.NewConn(b)
	defer ca.Close()
	defer cb.Close()

	ctx := context.Background()

	go func() {
		ca.Send(ctx, []byte("abc"))
		ca.Send(ctx, []byte("defg"))
		ca.Send(ctx, nil)
	}()

	r := &blockReader{ctx: ctx, conn: cb}
	got, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, []byte("abcdefg"), got)

	// reader stays at EOF once the entry marker is consumed
	n, err := r.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}
