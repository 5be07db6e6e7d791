package plan

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/kilnware/kiln/internal/ir"
)

// Plan is a compiled plan file: the allocations and the per-queue item
// lists handed to the recipe assembler.
type Plan struct {
	Allocs []ir.Alloc      `json:"allocs"`
	Queues []ir.QueueItems `json:"queues"`
}

// CompileError represents a plan compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses a CUE value into a Plan. The value should be the plan
// struct itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plan: { allocs: [...], queues: [...] }`)
//	p, err := plan.Compile(v.LookupPath(cue.ParsePath("plan")))
func Compile(v cue.Value) (*Plan, error) {
	if err := v.Err(); err != nil {
		return nil, &CompileError{Field: "plan", Message: err.Error(), Pos: v.Pos()}
	}

	p := &Plan{}

	allocsVal := v.LookupPath(cue.ParsePath("allocs"))
	if allocsVal.Exists() {
		iter, err := allocsVal.List()
		if err != nil {
			return nil, &CompileError{Field: "allocs", Message: "allocs must be a list", Pos: allocsVal.Pos()}
		}
		for iter.Next() {
			al, aerr := parseAlloc(iter.Value())
			if aerr != nil {
				return nil, aerr
			}
			p.Allocs = append(p.Allocs, al)
		}
	}

	queuesVal := v.LookupPath(cue.ParsePath("queues"))
	if !queuesVal.Exists() {
		return nil, &CompileError{Field: "queues", Message: "queues is required", Pos: v.Pos()}
	}
	iter, err := queuesVal.List()
	if err != nil {
		return nil, &CompileError{Field: "queues", Message: "queues must be a list", Pos: queuesVal.Pos()}
	}
	for iter.Next() {
		q, qerr := parseQueue(iter.Value())
		if qerr != nil {
			return nil, qerr
		}
		p.Queues = append(p.Queues, q)
	}

	return p, nil
}

func parseAlloc(v cue.Value) (ir.Alloc, error) {
	id, err := stringField(v, "id")
	if err != nil {
		return ir.Alloc{}, err
	}
	typeName, err := stringField(v, "type")
	if err != nil {
		return ir.Alloc{}, err
	}
	scalar, serr := parseScalarType(typeName, v)
	if serr != nil {
		return ir.Alloc{}, serr
	}
	count, err := intField(v, "count")
	if err != nil {
		return ir.Alloc{}, err
	}

	return ir.Alloc{ID: ir.AllocID(id), Type: scalar, Count: count}, nil
}

func parseQueue(v cue.Value) (ir.QueueItems, error) {
	queueID, err := intField(v, "queue")
	if err != nil {
		return ir.QueueItems{}, err
	}

	itemsVal := v.LookupPath(cue.ParsePath("items"))
	if !itemsVal.Exists() {
		return ir.QueueItems{}, &CompileError{Field: "items", Message: "queue items are required", Pos: v.Pos()}
	}
	iter, ierr := itemsVal.List()
	if ierr != nil {
		return ir.QueueItems{}, &CompileError{Field: "items", Message: "items must be a list", Pos: itemsVal.Pos()}
	}

	q := ir.QueueItems{Queue: ir.QueueID(queueID)}
	for iter.Next() {
		item, perr := parseItem(iter.Value())
		if perr != nil {
			return ir.QueueItems{}, perr
		}
		q.Items = append(q.Items, item)
	}
	return q, nil
}

func parseItem(v cue.Value) (ir.Item, error) {
	kind, err := stringField(v, "kind")
	if err != nil {
		return ir.Item{}, err
	}

	switch kind {
	case "perform":
		cmdVal := v.LookupPath(cue.ParsePath("command"))
		if !cmdVal.Exists() {
			return ir.Item{}, &CompileError{Field: "command", Message: "perform item requires a command", Pos: v.Pos()}
		}
		cmd, cerr := parseCommand(cmdVal)
		if cerr != nil {
			return ir.Item{}, cerr
		}
		return ir.Perform(cmd), nil

	case "emit", "wait":
		event, eerr := stringField(v, "event")
		if eerr != nil {
			return ir.Item{}, eerr
		}
		corr, cerr := intField(v, "corr")
		if cerr != nil {
			return ir.Item{}, cerr
		}
		ref := ir.EventRef{Event: ir.EventID(event), Corr: ir.CorrID(corr)}
		if kind == "emit" {
			return ir.Emit(ref), nil
		}
		return ir.Wait(ref), nil

	case "unit_begin", "unit_end":
		unit, uerr := stringField(v, "unit")
		if uerr != nil {
			return ir.Item{}, uerr
		}
		if kind == "unit_begin" {
			return ir.UnitBegin(unit), nil
		}
		return ir.UnitEnd(unit), nil

	default:
		return ir.Item{}, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown item kind %q", kind),
			Pos:     v.Pos(),
		}
	}
}

func parseCommand(v cue.Value) (ir.Command, error) {
	kind, err := stringField(v, "kind")
	if err != nil {
		return ir.Command{}, err
	}

	switch kind {
	case "kernel":
		tmpl, terr := parseTemplate(v, ir.DomainKernel)
		if terr != nil {
			return ir.Command{}, terr
		}
		shape, serr := parseShape(v)
		if serr != nil {
			return ir.Command{}, serr
		}
		args, aerr := allocList(v, "args")
		if aerr != nil {
			return ir.Command{}, aerr
		}
		return ir.Command{Kind: ir.CmdKernel, Kernel: &ir.KernelCommand{
			Template: tmpl, Shape: shape, Args: args,
		}}, nil

	case "host_call":
		tmpl, terr := parseTemplate(v, ir.DomainHost)
		if terr != nil {
			return ir.Command{}, terr
		}
		args, aerr := allocList(v, "args")
		if aerr != nil {
			return ir.Command{}, aerr
		}
		return ir.Command{Kind: ir.CmdHostCall, Host: &ir.HostCommand{
			Template: tmpl, Args: args,
		}}, nil

	case "copy_d2d", "copy_h2d", "copy_d2h":
		bytes, berr := intField(v, "bytes")
		if berr != nil {
			return ir.Command{}, berr
		}
		cp := &ir.CopyCommand{Bytes: bytes}
		var cmdKind ir.CommandKind
		switch kind {
		case "copy_d2d":
			cmdKind = ir.CmdCopyD2D
			dst, derr := stringField(v, "dst")
			if derr != nil {
				return ir.Command{}, derr
			}
			src, serr := stringField(v, "src")
			if serr != nil {
				return ir.Command{}, serr
			}
			cp.Dst, cp.Src = ir.AllocID(dst), ir.AllocID(src)
		case "copy_h2d":
			cmdKind = ir.CmdCopyH2D
			dst, derr := stringField(v, "dst")
			if derr != nil {
				return ir.Command{}, derr
			}
			cp.Dst = ir.AllocID(dst)
		case "copy_d2h":
			cmdKind = ir.CmdCopyD2H
			src, serr := stringField(v, "src")
			if serr != nil {
				return ir.Command{}, serr
			}
			cp.Src = ir.AllocID(src)
		}
		return ir.Command{Kind: cmdKind, Copy: cp}, nil

	case "fill":
		dst, derr := stringField(v, "dst")
		if derr != nil {
			return ir.Command{}, derr
		}
		pattern, perr := intField(v, "pattern")
		if perr != nil {
			return ir.Command{}, perr
		}
		if pattern < 0 || pattern > 255 {
			return ir.Command{}, &CompileError{
				Field:   "pattern",
				Message: fmt.Sprintf("fill pattern %d out of byte range", pattern),
				Pos:     v.Pos(),
			}
		}
		bytes, berr := intField(v, "bytes")
		if berr != nil {
			return ir.Command{}, berr
		}
		return ir.Command{Kind: ir.CmdFill, Fill: &ir.FillCommand{
			Dst: ir.AllocID(dst), Pattern: uint8(pattern), Bytes: bytes,
		}}, nil

	case "gemm":
		fields := [6]string{"a", "b", "c", "m", "n", "k"}
		g := &ir.GemmCommand{}
		for i, f := range fields[:3] {
			s, serr := stringField(v, f)
			if serr != nil {
				return ir.Command{}, serr
			}
			switch i {
			case 0:
				g.A = ir.AllocID(s)
			case 1:
				g.B = ir.AllocID(s)
			case 2:
				g.C = ir.AllocID(s)
			}
		}
		for i, f := range fields[3:] {
			n, nerr := intField(v, f)
			if nerr != nil {
				return ir.Command{}, nerr
			}
			switch i {
			case 0:
				g.M = n
			case 1:
				g.N = n
			case 2:
				g.K = n
			}
		}
		return ir.Command{Kind: ir.CmdGemm, Gemm: g}, nil

	default:
		return ir.Command{}, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown command kind %q", kind),
			Pos:     v.Pos(),
		}
	}
}

func parseTemplate(v cue.Value, domain ir.CodeDomain) (ir.TemplateRef, error) {
	name, err := stringField(v, "template")
	if err != nil {
		return ir.TemplateRef{}, err
	}

	typesVal := v.LookupPath(cue.ParsePath("type_args"))
	if !typesVal.Exists() {
		return ir.TemplateRef{}, &CompileError{Field: "type_args", Message: "template requires type_args", Pos: v.Pos()}
	}
	iter, ierr := typesVal.List()
	if ierr != nil {
		return ir.TemplateRef{}, &CompileError{Field: "type_args", Message: "type_args must be a list", Pos: typesVal.Pos()}
	}

	ref := ir.TemplateRef{Domain: domain, Name: name}
	for iter.Next() {
		s, serr := iter.Value().String()
		if serr != nil {
			return ir.TemplateRef{}, &CompileError{Field: "type_args", Message: serr.Error(), Pos: iter.Value().Pos()}
		}
		scalar, terr := parseScalarType(s, iter.Value())
		if terr != nil {
			return ir.TemplateRef{}, terr
		}
		ref.TypeArgs = append(ref.TypeArgs, scalar)
	}
	return ref, nil
}

func parseShape(v cue.Value) (ir.LaunchShape, error) {
	shape := ir.LaunchShape{GridX: 1, GridY: 1, GridZ: 1, BlockX: 1, BlockY: 1, BlockZ: 1}
	fields := map[string]*int64{
		"grid_x": &shape.GridX, "grid_y": &shape.GridY, "grid_z": &shape.GridZ,
		"block_x": &shape.BlockX, "block_y": &shape.BlockY, "block_z": &shape.BlockZ,
	}
	shapeVal := v.LookupPath(cue.ParsePath("shape"))
	if !shapeVal.Exists() {
		return ir.LaunchShape{}, &CompileError{Field: "shape", Message: "kernel requires a launch shape", Pos: v.Pos()}
	}
	for name, dst := range fields {
		fv := shapeVal.LookupPath(cue.ParsePath(name))
		if !fv.Exists() {
			continue // dimension defaults to 1
		}
		n, err := fv.Int64()
		if err != nil {
			return ir.LaunchShape{}, &CompileError{Field: "shape." + name, Message: err.Error(), Pos: fv.Pos()}
		}
		*dst = n
	}
	return shape, nil
}

func parseScalarType(s string, v cue.Value) (ir.ScalarType, error) {
	switch s {
	case "f32":
		return ir.Float32, nil
	case "f64":
		return ir.Float64, nil
	case "i32":
		return ir.Int32, nil
	case "i64":
		return ir.Int64, nil
	case "u8":
		return ir.UInt8, nil
	default:
		return 0, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unknown scalar type %q", s),
			Pos:     v.Pos(),
		}
	}
}

func allocList(v cue.Value, field string) ([]ir.AllocID, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: field + " must be a list", Pos: lv.Pos()}
	}
	var ids []ir.AllocID
	for iter.Next() {
		s, serr := iter.Value().String()
		if serr != nil {
			return nil, &CompileError{Field: field, Message: serr.Error(), Pos: iter.Value().Pos()}
		}
		ids = append(ids, ir.AllocID(s))
	}
	return ids, nil
}

func stringField(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return s, nil
}

func intField(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return n, nil
}
