// Package metadata stamps generated documentation with a provenance block
// (content hash, generation time, tool version) and verifies it later.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// TagStart is the start of the provenance block.
	TagStart = "<!-- PROVENANCE_START"
	// TagEnd is the end of the provenance block.
	TagEnd = "PROVENANCE_END -->"
)

// Verification errors.
var (
	ErrNoProvenanceBlock = errors.New("no provenance block found")
	ErrNoHashFound       = errors.New("no hash found in provenance block")
	ErrHashMismatch      = errors.New("hash mismatch")
)

// Provenance describes when and by what a document was generated.
type Provenance struct {
	GeneratedAt time.Time
	Tool        string
	Hash        string
}

// blockRegex matches the entire provenance block including tags.
var blockRegex = regexp.MustCompile(`(?s)<!--\s*PROVENANCE_START\s*\n(.*?)\n\s*PROVENANCE_END\s*-->`)

// Extract removes the provenance block from content and returns both the
// parsed block and the cleaned content. The cleaned content is what gets
// hashed.
func Extract(content string) (*Provenance, string) {
	match := blockRegex.FindStringSubmatch(content)
	clean := blockRegex.ReplaceAllString(content, "")
	clean = strings.TrimRight(clean, "\n")

	if len(match) < 2 {
		return nil, clean
	}

	p := &Provenance{}

	for line := range strings.SplitSeq(match[1], "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch key {
		case "GENERATED_AT":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				p.GeneratedAt = t
			}
		case "TOOL":
			p.Tool = val
		case "HASH":
			p.Hash = val
		}
	}

	return p, clean
}

// CalculateHash computes the SHA-256 hash of the content, excluding any
// provenance block.
func CalculateHash(content string) string {
	_, clean := Extract(content)
	hash := sha256.Sum256([]byte(clean))

	return hex.EncodeToString(hash[:])
}

// Sign appends a provenance block with a fresh hash and the given
// generation time. Any existing block is replaced.
func Sign(content, tool string, generatedAt time.Time) string {
	_, clean := Extract(content)

	hash := CalculateHash(clean)
	stamp := generatedAt.UTC().Format(time.RFC3339)

	block := fmt.Sprintf("\n\n%s\nTOOL: %s\nGENERATED_AT: %s\nHASH: %s\n%s",
		TagStart, tool, stamp, hash, TagEnd)

	return clean + block
}

// Verify checks that the content matches the hash in its provenance block.
func Verify(content string) (bool, error) {
	p, clean := Extract(content)
	if p == nil {
		return false, ErrNoProvenanceBlock
	}

	if p.Hash == "" {
		return false, ErrNoHashFound
	}

	calculated := CalculateHash(clean)
	if calculated != p.Hash {
		return false, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, p.Hash, calculated)
	}

	return true, nil
}
