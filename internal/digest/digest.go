// Package digest computes and compares the MD5 content digests used to
// verify archive uploads.
//
// MD5 is used because it is the integrity mechanism the object store
// verifies natively: S3 checks the Content-MD5 header on upload and exposes
// the content MD5 as the ETag of a whole-object Put. A completed upload can
// therefore be trusted without downloading it back.
package digest

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coldhome-io/coldhome/internal/objectstore"
)

// ErrUnverifiable is returned when a remote object's ETag is not a content
// MD5 (e.g. the object was written with a multipart upload). Equality with a
// local digest cannot be proven, so callers must treat the remote object as
// not matching.
var ErrUnverifiable = errors.New("digest: remote etag is not a content md5")

// Digest is a raw MD5 content digest.
type Digest [md5.Size]byte

// Hex returns the lowercase hex form of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Base64 returns the standard base64 form, as used by the Content-MD5 header.
func (d Digest) Base64() string {
	return base64.StdEncoding.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// FromHex parses a lowercase or uppercase hex digest.
func FromHex(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("digest: decode hex %q: %w", s, err)
	}
	if len(b) != md5.Size {
		return d, fmt.Errorf("digest: hex digest %q has %d bytes, want %d", s, len(b), md5.Size)
	}
	copy(d[:], b)
	return d, nil
}

// FromBase64 parses a standard base64 digest.
func FromBase64(s string) (Digest, error) {
	var d Digest
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("digest: decode base64 %q: %w", s, err)
	}
	if len(b) != md5.Size {
		return d, fmt.Errorf("digest: base64 digest %q has %d bytes, want %d", s, len(b), md5.Size)
	}
	copy(d[:], b)
	return d, nil
}

// FromETag parses an S3-style ETag into a content digest.
//
// Whole-object uploads produce a quoted hex MD5 (`"9e107d..."`). Multipart
// uploads produce `"hash-partCount"`, which is not a content MD5; those
// return ErrUnverifiable.
func FromETag(etag string) (Digest, error) {
	s := strings.Trim(etag, `"`)
	if strings.Contains(s, "-") {
		return Digest{}, ErrUnverifiable
	}
	return FromHex(s)
}

// Local computes the content digest of a local file, streaming it through
// the hash.
func Local(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("digest: open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, fmt.Errorf("digest: read %s: %w", path, err)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Remote queries the digest of an already-uploaded object.
//
// Returns (digest, true, nil) when the object exists with a verifiable
// digest, (zero, false, nil) when it does not exist, and an error for
// anything else. Absence is an expected state, not a failure.
func Remote(ctx context.Context, store objectstore.Store, key string) (Digest, bool, error) {
	meta, err := store.Head(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return Digest{}, false, nil
		}
		return Digest{}, false, err
	}

	d, err := FromETag(meta.ETag)
	if err != nil {
		return Digest{}, false, fmt.Errorf("digest: object %s: %w", key, err)
	}
	return d, true, nil
}
