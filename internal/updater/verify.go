package updater

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/javanhut/contentsync/internal/block"
	"github.com/minio/sha256-simd"
)

// ErrIntegrity is wrapped by every payload verification failure. Each one
// counts as a failed attempt for the block.
var ErrIntegrity = errors.New("integrity check failed")

var (
	ErrDecompress    = fmt.Errorf("%w: decompression failed", ErrIntegrity)
	ErrEmptyPayload  = fmt.Errorf("%w: empty payload", ErrIntegrity)
	ErrHashMismatch  = fmt.Errorf("%w: hash mismatch", ErrIntegrity)
	errEmptyManifest = errors.New("empty manifest body")
)

// PayloadHash returns the base64 SHA-256 used in manifests.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// verifyPayload decompresses a downloaded block and checks it against the
// manifest hash. The comparison is exact and case-sensitive.
func verifyPayload(data []byte, want string) ([]byte, error) {
	payload, err := block.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if got := PayloadHash(payload); got != want {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, want, got)
	}
	return payload, nil
}
