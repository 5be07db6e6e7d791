package codegen

import (
	"fmt"
	"strings"

	"github.com/kilnware/kiln/internal/ir"
)

// SignatureError reports a template reference whose argument types cannot
// be rendered into C-linkage wrapper code. Fatal: the offending signature
// indicates an upstream lowering bug, not a recoverable condition.
type SignatureError struct {
	Template  string
	Signature string
	Message   string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid template signature %s(%s): %s", e.Template, e.Signature, e.Message)
}

// cType renders a scalar type to its C spelling, or an error for a type
// the wrapper generator cannot express.
func cType(t ir.ScalarType) (string, error) {
	switch t {
	case ir.Float32:
		return "float", nil
	case ir.Float64:
		return "double", nil
	case ir.Int32:
		return "int32_t", nil
	case ir.Int64:
		return "int64_t", nil
	case ir.UInt8:
		return "uint8_t", nil
	default:
		return "", fmt.Errorf("no C rendering for scalar type %s", t)
	}
}

// renderSignature renders the full C parameter list and the template
// argument list for a reference. Every argument is a device pointer of
// its scalar type.
func renderSignature(ref ir.TemplateRef) (params string, typeArgs string, err error) {
	if len(ref.TypeArgs) == 0 {
		return "", "", &SignatureError{
			Template:  ref.Name,
			Signature: "",
			Message:   "template has no argument types",
		}
	}

	paramList := make([]string, len(ref.TypeArgs))
	typeList := make([]string, len(ref.TypeArgs))
	for i, t := range ref.TypeArgs {
		ct, cerr := cType(t)
		if cerr != nil {
			return "", "", &SignatureError{
				Template:  ref.Name,
				Signature: signatureString(ref),
				Message:   cerr.Error(),
			}
		}
		paramList[i] = fmt.Sprintf("%s* a%d", ct, i)
		typeList[i] = ct
	}

	return strings.Join(paramList, ", "), strings.Join(typeList, ", "), nil
}

// signatureString renders the IR spelling of a signature for diagnostics.
func signatureString(ref ir.TemplateRef) string {
	parts := make([]string, len(ref.TypeArgs))
	for i, t := range ref.TypeArgs {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
