package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/hpungsan/dupsweep/internal/fsutil"
)

// Algorithm names the digest written into plans and the hash cache.
const Algorithm = "sha256"

// DefaultBlockSize is the read buffer used when SHA256Hasher.BlockSize is unset.
const DefaultBlockSize = 64 * 1024

// Hasher computes a content digest for a file.
type Hasher interface {
	Digest(path string) (string, error)
}

// SHA256Hasher streams file content through SHA-256 with a fixed-size buffer,
// so memory use does not depend on file size.
type SHA256Hasher struct {
	BlockSize int
}

// Digest returns the lowercase hex SHA-256 of the file at path.
// Symlinks are refused.
func (h SHA256Hasher) Digest(path string) (digest string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("hashing `%s`: %w", path, err)
		}
	}()

	f, err := fsutil.OpenReadNoFollow(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	size := h.BlockSize
	if size <= 0 {
		size = DefaultBlockSize
	}
	buf := make([]byte, size)
	sum := sha256.New()
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sum.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// DigestCache remembers digests keyed on path, size and modification time.
type DigestCache interface {
	Lookup(path string, size, modTime int64) (digest string, ok bool, err error)
	Store(path string, size, modTime int64, digest string) error
}

// CachingHasher consults a DigestCache before hashing and records fresh digests.
// Cache failures degrade to plain hashing.
type CachingHasher struct {
	base  Hasher
	cache DigestCache

	Hits   int
	Misses int
}

// NewCachingHasher wraps base with cache.
func NewCachingHasher(base Hasher, cache DigestCache) *CachingHasher {
	return &CachingHasher{base: base, cache: cache}
}

// Digest returns the cached digest when the file's size and mtime are
// unchanged, otherwise hashes it and stores the result.
func (h *CachingHasher) Digest(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("hashing `%s`: %w", path, err)
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	if digest, ok, err := h.cache.Lookup(path, size, mtime); err == nil && ok {
		h.Hits++
		return digest, nil
	}

	h.Misses++
	digest, err := h.base.Digest(path)
	if err != nil {
		return "", err
	}
	_ = h.cache.Store(path, size, mtime, digest)
	return digest, nil
}
