// Package docid derives deterministic, content-addressed identifiers for documents and chunks.
package docid

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

// hexLen is the number of hex characters kept from the digest (64 bits).
const hexLen = 16

// Namespaces used by the ingestion pipeline.
const (
	NamespaceDocument = "doc"
	NamespaceChunk    = "chunk"
)

// DeriveID returns namespace + "_" + the first 16 hex characters of md5(content).
// Same (content, namespace) always yields the same ID. Not a security primitive.
func DeriveID(content, namespace string) string {
	sum := md5.Sum([]byte(content))
	return namespace + "_" + hex.EncodeToString(sum[:])[:hexLen]
}

// DocumentID returns the ID for a whole document keyed by its content.
func DocumentID(content string) string {
	return DeriveID(content, NamespaceDocument)
}

// ChunkID returns the ID for chunk chunkIndex of the document at url.
// Keyed by position rather than chunk text so re-ingestion replaces the same records.
func ChunkID(url string, chunkIndex int) string {
	return DeriveID(url+"_"+strconv.Itoa(chunkIndex), NamespaceChunk)
}

// FileURL returns the canonical URL for a local file so the same path always yields the same chunk IDs.
func FileURL(absolutePath string) string {
	return "file://" + filepath.ToSlash(filepath.Clean(absolutePath))
}
