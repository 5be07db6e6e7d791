package testutil

// FixedTokenSource returns the same build token every time.
//
// This enables deterministic recipe assembly and golden snapshot
// comparison. The same plan assembled with the same FixedTokenSource
// produces byte-identical recipes.
//
// Unlike ir.UUIDv7Source, which mints a fresh token per build, this
// source is stateless and safe for concurrent use.
type FixedTokenSource struct {
	token string
}

// NewFixedTokenSource creates a fixed build token source.
//
// The token is typically set in the scenario YAML:
//
//	build_token: "test-build-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Token() returns "test-build-default".
func NewFixedTokenSource(token string) *FixedTokenSource {
	if token == "" {
		token = "test-build-default"
	}
	return &FixedTokenSource{token: token}
}

// Token returns the fixed build token.
//
// Implements ir.TokenSource.
func (s *FixedTokenSource) Token() string {
	return s.token
}
