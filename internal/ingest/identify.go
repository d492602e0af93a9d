package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxStemRunes = 48

// Identity pins a document to a path and the exact bytes found there.
type Identity struct {
	Path        string // absolute
	ContentHash string // hex sha256
	DocumentID  string
	Size        int64
}

// Identify hashes the file at path and derives its document ID.
func Identify(path string) (Identity, error) {
	var out Identity

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return out, fmt.Errorf("hash: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	return Identity{
		Path:        abs,
		ContentHash: sum,
		DocumentID:  DocumentID(abs, sum),
		Size:        n,
	}, nil
}

// DocumentID is "<stem>-<16 hex>". The suffix covers path and content, so the
// same bytes under another name, or new bytes under the same name, are new documents.
func DocumentID(absPath, contentHash string) string {
	sum := sha256.Sum256([]byte(absPath + "\x00" + contentHash))
	return sanitizeStem(absPath) + "-" + hex.EncodeToString(sum[:])[:16]
}

func sanitizeStem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	dash := false
	n := 0
	for _, r := range stem {
		if n >= maxStemRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			n++
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "document"
	}
	return s
}
