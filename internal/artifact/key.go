package artifact

import (
	"fmt"

	"github.com/kilnware/kiln/internal/ir"
)

// Key identifies one compiled artifact. Equality is structural over all
// three fields: changing the source, any single header fingerprint, or
// any compiler argument (including order) produces a different key.
type Key struct {
	// Source is the full generated source text.
	Source string `json:"source"`

	// Headers maps header file name to its content fingerprint
	// (ir.HeaderFingerprint of the header bytes).
	Headers map[string]string `json:"headers"`

	// Args is the full ordered compiler argument list.
	Args []string `json:"args"`
}

// NewKey builds a Key, fingerprinting the given header contents.
func NewKey(source string, headers map[string][]byte, args []string) Key {
	fps := make(map[string]string, len(headers))
	for name, content := range headers {
		fps[name] = ir.HeaderFingerprint(content)
	}
	argsCopy := make([]string, len(args))
	copy(argsCopy, args)
	return Key{Source: source, Headers: fps, Args: argsCopy}
}

// Hash returns the content-addressed hash naming this key's cache entry.
func (k Key) Hash() (string, error) {
	return ir.ArtifactKeyHash(k.Source, k.Headers, k.Args)
}

// fingerprintDoc renders the key-fingerprint file content: canonical JSON
// of the key with the source replaced by its length and its own hash, so
// the fingerprint file stays small for large generated sources.
func (k Key) fingerprintDoc() ([]byte, error) {
	headerObj := make(map[string]any, len(k.Headers))
	for name, fp := range k.Headers {
		headerObj[name] = fp
	}
	argList := make([]any, len(k.Args))
	for i, a := range k.Args {
		argList[i] = a
	}

	keyHash, err := k.Hash()
	if err != nil {
		return nil, err
	}

	doc := map[string]any{
		"key_hash":     keyHash,
		"source_bytes": int64(len(k.Source)),
		"headers":      headerObj,
		"args":         argList,
	}

	canonical, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, fmt.Errorf("fingerprint doc: %w", err)
	}
	return canonical, nil
}
