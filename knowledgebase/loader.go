package knowledgebase

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML guideline file. Fields present in the file override the
// built-in table; lists (rules, tiers, actions) are replaced as a whole. An
// empty path returns the built-in table.
func Load(path string) (*KnowledgeBase, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}

	kb, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base %s: %w", path, err)
	}

	return kb, nil
}

// Parse decodes YAML over the built-in table and validates the result. An
// empty document yields the built-in table.
func Parse(raw []byte) (*KnowledgeBase, error) {
	kb := Default()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(kb); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	if err := kb.Validate(); err != nil {
		return nil, fmt.Errorf("knowledge base validation failed: %w", err)
	}

	return kb, nil
}

// Checksum returns the hex SHA-256 of raw file content
func Checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// FileChecksum returns the checksum of the file at path
func FileChecksum(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Checksum(raw), nil
}
