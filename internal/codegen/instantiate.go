package codegen

import (
	"fmt"
	"strings"

	"github.com/kilnware/kiln/internal/ir"
)

// Instantiator is the template instantiation cache. It owns the wrapper
// naming counters and the per-domain source buffers, so independent
// compilations never share state.
//
// Not safe for concurrent use: one Instantiator belongs to one assembler
// run, which is single-threaded.
type Instantiator struct {
	// wrappers maps structural signature keys to generated wrapper names.
	wrappers map[string]string

	// ordinals tracks the next disambiguating ordinal per base name,
	// guaranteeing collision-free C-linkage symbols.
	ordinals map[string]int

	kernelSrc strings.Builder
	hostSrc   strings.Builder
}

// NewInstantiator creates an empty instantiation cache.
func NewInstantiator() *Instantiator {
	return &Instantiator{
		wrappers: make(map[string]string),
		ordinals: make(map[string]int),
	}
}

// Instantiate returns the C-linkage wrapper name for the given template
// reference, generating the wrapper source on first use.
//
// Idempotent: structurally equal references share one wrapper and the
// source is emitted exactly once. Returns *SignatureError if the argument
// types cannot be rendered.
func (in *Instantiator) Instantiate(ref ir.TemplateRef) (string, error) {
	key := ref.SignatureKey()
	if name, ok := in.wrappers[key]; ok {
		return name, nil
	}

	params, typeArgs, err := renderSignature(ref)
	if err != nil {
		return "", err
	}

	ordinal := in.ordinals[ref.Name]
	in.ordinals[ref.Name] = ordinal + 1
	name := fmt.Sprintf("%s_%d", ref.Name, ordinal)

	argNames := make([]string, len(ref.TypeArgs))
	for i := range ref.TypeArgs {
		argNames[i] = fmt.Sprintf("a%d", i)
	}
	forwarded := strings.Join(argNames, ", ")

	switch ref.Domain {
	case ir.DomainKernel:
		fmt.Fprintf(&in.kernelSrc,
			"extern \"C\" __global__ void %s(%s) {\n    %s<%s>(%s);\n}\n\n",
			name, params, ref.Name, typeArgs, forwarded)
	case ir.DomainHost:
		fmt.Fprintf(&in.hostSrc,
			"extern \"C\" void %s(%s) {\n    %s<%s>(%s);\n}\n\n",
			name, params, ref.Name, typeArgs, forwarded)
	default:
		return "", &SignatureError{
			Template:  ref.Name,
			Signature: signatureString(ref),
			Message:   fmt.Sprintf("unknown code domain %s", ref.Domain),
		}
	}

	in.wrappers[key] = name
	return name, nil
}

// Source returns the accumulated generated source for one code domain.
func (in *Instantiator) Source(domain ir.CodeDomain) string {
	switch domain {
	case ir.DomainKernel:
		return in.kernelSrc.String()
	case ir.DomainHost:
		return in.hostSrc.String()
	default:
		return ""
	}
}

// Count returns the number of distinct instantiations generated so far.
func (in *Instantiator) Count() int {
	return len(in.wrappers)
}
