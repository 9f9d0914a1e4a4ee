package transfer

import "errors"

var (
	// ErrProtocol reports a version mismatch or malformed manifest; the
	// session never starts transferring data.
	ErrProtocol = errors.New("protocol error")

	// ErrRemoteRejected reports that the peer aborted the handshake, e.g.
	// a conflicting path was found on its side.
	ErrRemoteRejected = errors.New("remote rejected transfer")

	// ErrPathTraversal reports an entry path that escapes the destination
	// root.
	ErrPathTraversal = errors.New("path escapes destination root")

	// ErrConflict reports a target path that already exists.
	ErrConflict = errors.New("target path already exists")

	// ErrStreamCorrupt reports a decompression or framing failure
	// mid-entry.
	ErrStreamCorrupt = errors.New("stream corrupt")

	// ErrIntegrity reports a digest mismatch after an entry was fully
	// received.
	ErrIntegrity = errors.New("integrity check failed")
)
