package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without colliding with old entries.
const (
	DomainArtifactKey   = "kiln/artifact-key/v1"
	DomainHeaderContent = "kiln/header/v1"
	DomainTrace         = "kiln/trace/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HeaderFingerprint computes the content fingerprint of one header file.
// Artifact cache keys carry these instead of raw header text so a key
// stays small while still invalidating on any header edit.
func HeaderFingerprint(content []byte) string {
	return hashWithDomain(DomainHeaderContent, content)
}

// ArtifactKeyHash computes the content-addressed hash of an artifact cache
// key: the generated source, every header fingerprint, and the full ordered
// compiler argument list. Changing any one field changes the hash.
// Returns an error if the key cannot be canonically marshaled.
func ArtifactKeyHash(source string, headers map[string]string, args []string) (string, error) {
	argList := make([]any, len(args))
	for i, a := range args {
		argList[i] = a
	}
	headerObj := make(map[string]any, len(headers))
	for name, fp := range headers {
		headerObj[name] = fp
	}

	obj := map[string]any{
		"source":  source,
		"headers": headerObj,
		"args":    argList,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ArtifactKeyHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainArtifactKey, canonical), nil
}

// TraceHash computes a content-addressed hash over a rendered call trace.
// Used by the harness to detect trace drift outside golden comparisons.
func TraceHash(lines []string) (string, error) {
	list := make([]any, len(lines))
	for i, l := range lines {
		list[i] = l
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustArtifactKeyHash is like ArtifactKeyHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustArtifactKeyHash(source string, headers map[string]string, args []string) string {
	h, err := ArtifactKeyHash(source, headers, args)
	if err != nil {
		panic(err)
	}
	return h
}
