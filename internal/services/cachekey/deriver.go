// Package cachekey derives stable cache identities from semantic generation
// input. Identical canonical input always produces an identical key,
// independent of process or time.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/utils"

	"github.com/valyala/bytebufferpool"
)

// KeyLength is the length of an un-namespaced cache key (SHA-256 hex)
const KeyLength = 64

// namespacedDigestLength is the digest portion kept on namespaced keys
const namespacedDigestLength = 48

var keyRe = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Derive canonicalizes the request and returns its 64-hex-character digest.
// Canonicalization failure is a programmer error, not a runtime condition.
func Derive(req models.GenerationRequest) string {
	canonical := canonicalJSON(req.Normalized())
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// DeriveNamespaced derives a key with a short prefix separating a logically
// distinct cache domain, e.g. "listings-" plus a truncated digest.
func DeriveNamespaced(prefix string, req models.GenerationRequest) string {
	canonical := canonicalJSON(req.Normalized())
	sum := sha256.Sum256(canonical)
	return prefix + hex.EncodeToString(sum[:])[:namespacedDigestLength]
}

// IsValidKey reports whether s has the shape of an un-namespaced cache key
func IsValidKey(s string) bool {
	return keyRe.MatchString(s)
}

// canonicalJSON produces deterministic JSON: object keys sorted, no
// dependence on struct field order or map iteration order.
func canonicalJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("cachekey: unserializable input: %v", err))
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		panic(fmt.Sprintf("cachekey: re-decode failed: %v", err))
	}

	buf := utils.Get()
	defer utils.Put(buf)

	writeCanonical(buf, decoded)

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

func writeCanonical(buf *bytebufferpool.ByteBuffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(",")
			}
			keyBytes, _ := json.Marshal(k)
			buf.WriteString(string(keyBytes))
			buf.WriteString(":")
			writeCanonical(buf, val[k])
		}
		buf.WriteString("}")
	case []any:
		buf.WriteString("[")
		for i, item := range val {
			if i > 0 {
				buf.WriteString(",")
			}
			writeCanonical(buf, item)
		}
		buf.WriteString("]")
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			panic(fmt.Sprintf("cachekey: unserializable value: %v", err))
		}
		buf.WriteString(string(raw))
	}
}
