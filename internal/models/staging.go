package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

const stagingHashLen = 12

// StagingKey is the object-store key under which one input file is staged.
// It is derived from the file's base name and a hash of its absolute path, so
// two inputs sharing a base name in different directories never collide.
type StagingKey string

// NewStagingKey derives the staging key for inputPath.
func NewStagingKey(inputPath string) (StagingKey, error) {
	base := BaseName(inputPath)
	if base == "" {
		return "", fmt.Errorf("%w: %q has an empty base name", ErrInvalidInput, inputPath)
	}
	for _, r := range base {
		if r == '/' || r == '\\' || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return "", fmt.Errorf("%w: %q contains characters not allowed in object names", ErrInvalidInput, inputPath)
		}
	}

	abs, err := filepath.Abs(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path of %s: %w", inputPath, err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return StagingKey(base + "-" + hex.EncodeToString(sum[:])[:stagingHashLen]), nil
}

// InputObject is the key of the staged input document.
func (k StagingKey) InputObject() string {
	return string(k) + "/input.pdf"
}

// OutputPrefix is the prefix the recognizer writes its result objects under.
func (k StagingKey) OutputPrefix() string {
	return string(k) + "/output/"
}

// BaseName is the file name without directory and extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
