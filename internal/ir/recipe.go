package ir

import "github.com/google/uuid"

// RecipeVersion is the schema version stamped on every recipe.
// Bump when the call or source layout changes incompatibly.
const RecipeVersion = "kiln/recipe/v1"

// Recipe is the fully compiled, ready-to-execute program: two generated
// source blobs plus three ordered call lists. It is immutable after
// assembly; the executor that owns device handles replays the lists
// verbatim.
//
// InitCalls acquire resources in the order allocations, queues, events.
// DisposeCalls release them in exact reverse category order: events,
// queues, allocations. ExecCalls is the per-invocation body.
type Recipe struct {
	Version    string `json:"version"`
	BuildToken string `json:"build_token"`

	KernelSource string `json:"kernel_source"`
	HostSource   string `json:"host_source"`

	InitCalls    []Call `json:"init_calls"`
	DisposeCalls []Call `json:"dispose_calls"`
	ExecCalls    []Call `json:"exec_calls"`
}

// TokenSource generates build tokens for recipe correlation.
// Implemented by UUIDv7Source (production) and the test fixture in
// internal/testutil (deterministic).
type TokenSource interface {
	Token() string
}

// UUIDv7Source generates time-ordered UUIDv7 build tokens.
type UUIDv7Source struct{}

// Token returns a new UUIDv7 string, falling back to UUIDv4 if the
// monotonic source fails (uuid.NewV7 errors only on entropy exhaustion).
func (UUIDv7Source) Token() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
