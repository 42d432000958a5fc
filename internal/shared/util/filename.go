package util

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName strips directory components and replaces characters outside
// [a-zA-Z0-9._-] with underscores. Traversal patterns are rejected.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	if strings.Contains(s, "..") {
		return "", errors.New("invalid file name")
	}
	s = strings.ReplaceAll(s, "\\", "/")
	s = filepath.Base(s)
	s = unsafeFileChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == "_" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// SecureFileName returns "<name>_<YYYYmmdd_HHMMSS>_<8 hex><ext>" for an
// uploaded file so archived names never collide or carry path components.
func SecureFileName(original string, now time.Time) (string, error) {
	clean, err := SanitizeFileName(original)
	if err != nil {
		return "", err
	}
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	ext := filepath.Ext(clean)
	base := strings.TrimSuffix(clean, ext)
	return base + "_" + now.UTC().Format("20060102_150405") + "_" + hex.EncodeToString(b[:]) + ext, nil
}
