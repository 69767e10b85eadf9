// Package naming derives deterministic output file names from filename
// templates and content digests.
//
// A template is a path with bracketed tokens:
//
//	[name]         module or file base name
//	[ext]          file extension without the dot
//	[chunkhash]    digest of the emitted bundle
//	[contenthash]  digest of the emitted file contents
//	[hash]         build identifier derived from every output
//
// Hash tokens accept a length suffix, e.g. [chunkhash:8]. Rendering is a
// pure function of the template and tokens, so unchanged content always
// yields the same name and changed content yields a different one.
package naming

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

var (
	// ErrUnknownToken indicates a template token is not recognised
	ErrUnknownToken = errors.New("unknown filename token")
	// ErrMissingHash indicates a hash token was used without a digest to fill it
	ErrMissingHash = errors.New("missing digest for hash token")
	// ErrUnknownHashFunction indicates the hash function is not supported
	ErrUnknownHashFunction = errors.New("unknown hash function")
	// ErrUnknownDigest indicates the digest encoding is not supported
	ErrUnknownDigest = errors.New("unknown hash digest encoding")
)

const (
	HashBlake3    = "blake3"
	HashSHA256    = "sha256"
	HashCRC64NVME = "crc64nvme"

	DigestHex       = "hex"
	DigestBase58    = "base58"
	DigestBase64URL = "base64url"
)

var tokenPattern = regexp.MustCompile(`\[([a-z]+)(?::([0-9]+))?\]`)

// Tokens are the values substituted into a template.
type Tokens struct {
	Name        string
	Ext         string
	ChunkHash   string
	ContentHash string
	Hash        string
}

// Namer renders templates and computes the digests that fill them.
type Namer struct {
	newHash func() hash.Hash
	encode  func([]byte) string
	length  int
}

// New returns a Namer using the given hash function, digest encoding and
// default hash length.
func New(function, digest string, length int) (*Namer, error) {
	n := &Namer{length: length}

	switch function {
	case HashBlake3, "":
		n.newHash = func() hash.Hash { return blake3.New() }
	case HashSHA256:
		n.newHash = sha256.New
	case HashCRC64NVME:
		n.newHash = func() hash.Hash { return crc64nvme.New() }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHashFunction, function)
	}

	switch digest {
	case DigestHex, "":
		n.encode = hex.EncodeToString
	case DigestBase58:
		n.encode = base58.Encode
	case DigestBase64URL:
		n.encode = base64.RawURLEncoding.EncodeToString
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDigest, digest)
	}

	return n, nil
}

// Digest returns the encoded digest of data.
func (n *Namer) Digest(data []byte) string {
	h := n.newHash()
	h.Write(data)
	return n.encode(h.Sum(nil))
}

// BuildHash combines output digests into a single build identifier. The
// result does not depend on the order of digests.
func (n *Namer) BuildHash(digests ...string) string {
	sorted := slices.Clone(digests)
	slices.Sort(sorted)

	h := n.newHash()
	for _, d := range sorted {
		h.Write([]byte(d))
		h.Write([]byte{0})
	}
	return n.encode(h.Sum(nil))
}

// Name renders tmpl with tokens.
func (n *Namer) Name(tmpl string, tokens Tokens) (string, error) {
	var renderErr error

	out := tokenPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		if renderErr != nil {
			return match
		}

		parts := tokenPattern.FindStringSubmatch(match)
		token, lengthSuffix := parts[1], parts[2]

		length := n.length
		if lengthSuffix != "" {
			l, err := strconv.Atoi(lengthSuffix)
			if err != nil {
				renderErr = fmt.Errorf("%s: %w", match, err)
				return match
			}
			length = l
		}

		switch token {
		case "name", "ext":
			if lengthSuffix != "" {
				renderErr = fmt.Errorf("%w: %s takes no length", ErrUnknownToken, match)
				return match
			}
			if token == "name" {
				return tokens.Name
			}
			return tokens.Ext
		case "chunkhash":
			return n.truncate(match, tokens.ChunkHash, length, &renderErr)
		case "contenthash":
			return n.truncate(match, tokens.ContentHash, length, &renderErr)
		case "hash":
			return n.truncate(match, tokens.Hash, length, &renderErr)
		default:
			renderErr = fmt.Errorf("%w: %s", ErrUnknownToken, match)
			return match
		}
	})

	if renderErr != nil {
		return "", fmt.Errorf("rendering %q: %w", tmpl, renderErr)
	}
	return out, nil
}

func (n *Namer) truncate(token, digest string, length int, errp *error) string {
	if digest == "" {
		*errp = fmt.Errorf("%w: %s", ErrMissingHash, token)
		return token
	}
	if length > 0 && length < len(digest) {
		return digest[:length]
	}
	return digest
}

// SplitName splits a file path into the [name] and [ext] token values,
// dropping any directory and query string.
func SplitName(path string) (name, ext string) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// UsesToken reports whether tmpl references the given token.
func UsesToken(tmpl, token string) bool {
	for _, m := range tokenPattern.FindAllStringSubmatch(tmpl, -1) {
		if m[1] == token {
			return true
		}
	}
	return false
}
