package ir

import "fmt"

// ScalarType enumerates the element types a buffer or template argument
// can carry. The set is closed: rendering to native C types must be able
// to switch exhaustively over it.
type ScalarType int

const (
	// Float32 is a 32-bit IEEE float ("float" in generated code).
	Float32 ScalarType = iota + 1
	// Float64 is a 64-bit IEEE float ("double" in generated code).
	Float64
	// Int32 is a 32-bit signed integer.
	Int32
	// Int64 is a 64-bit signed integer.
	Int64
	// UInt8 is an 8-bit unsigned integer (byte buffers, fill patterns).
	UInt8
)

// String returns the IR spelling of the scalar type.
func (t ScalarType) String() string {
	switch t {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case UInt8:
		return "u8"
	default:
		return fmt.Sprintf("ScalarType(%d)", int(t))
	}
}

// ByteSize returns the size of one element in bytes, or 0 for an
// unknown scalar type.
func (t ScalarType) ByteSize() int64 {
	switch t {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case UInt8:
		return 1
	default:
		return 0
	}
}

// AllocID identifies one device memory allocation within a plan.
type AllocID string

// QueueID identifies one hardware command queue. Queues are created before
// and destroyed after the command sequence that uses them.
type QueueID int

// EventID identifies one synchronization event object.
type EventID string

// CorrID is a correlation id grouping one producer emit with the consumer
// waits that represent the same logical dependency edge.
type CorrID int64

// Alloc describes one device buffer. Element counts are concrete by the
// time a plan reaches the assembler; symbolic sizes are resolved upstream.
// Allocations are owned by the assembler and referenced, never owned,
// by commands.
type Alloc struct {
	ID    AllocID    `json:"id"`
	Type  ScalarType `json:"type"`
	Count int64      `json:"count"`
}

// ByteSize returns the total allocation size in bytes.
func (a Alloc) ByteSize() int64 {
	return a.Type.ByteSize() * a.Count
}

// EventRef names an event together with the correlation id of the
// dependency edge it carries.
type EventRef struct {
	Event EventID `json:"event"`
	Corr  CorrID  `json:"corr"`
}

// CodeDomain separates generated source by compilation unit: device kernel
// code and host-callable code are emitted as two distinct blobs.
type CodeDomain int

const (
	// DomainKernel is device kernel code (compiled to device bytecode).
	DomainKernel CodeDomain = iota + 1
	// DomainHost is host-callable code (compiled to a shared library).
	DomainHost
)

// String returns the domain name used in wrapper symbols and diagnostics.
func (d CodeDomain) String() string {
	switch d {
	case DomainKernel:
		return "kernel"
	case DomainHost:
		return "host"
	default:
		return fmt.Sprintf("CodeDomain(%d)", int(d))
	}
}

// TemplateRef names a templated device or host function together with the
// concrete scalar types it is instantiated with. Structural equality over
// (Domain, Name, TypeArgs) drives instantiation deduplication.
type TemplateRef struct {
	Domain   CodeDomain   `json:"domain"`
	Name     string       `json:"name"`
	TypeArgs []ScalarType `json:"type_args"`
}

// SignatureKey returns the structural identity of the reference, usable as
// a map key. Two refs with equal keys share one generated wrapper.
func (r TemplateRef) SignatureKey() string {
	key := fmt.Sprintf("%s/%s", r.Domain, r.Name)
	for _, t := range r.TypeArgs {
		key += "/" + t.String()
	}
	return key
}

// LaunchShape is the grid/block geometry of a kernel launch.
type LaunchShape struct {
	GridX  int64 `json:"grid_x"`
	GridY  int64 `json:"grid_y"`
	GridZ  int64 `json:"grid_z"`
	BlockX int64 `json:"block_x"`
	BlockY int64 `json:"block_y"`
	BlockZ int64 `json:"block_z"`
}

// CommandKind tags the closed set of abstract device commands.
type CommandKind int

const (
	// CmdKernel launches a templated device kernel.
	CmdKernel CommandKind = iota + 1
	// CmdHostCall invokes a host-side C function.
	CmdHostCall
	// CmdCopyD2D copies between two device allocations.
	CmdCopyD2D
	// CmdCopyH2D copies from host memory into a device allocation.
	CmdCopyH2D
	// CmdCopyD2H copies from a device allocation into host memory.
	CmdCopyD2H
	// CmdFill sets every byte of a device allocation to a pattern.
	CmdFill
	// CmdGemm is a BLAS-style matrix multiply on device allocations.
	CmdGemm
)

// String returns the command kind name used in plans and diagnostics.
func (k CommandKind) String() string {
	switch k {
	case CmdKernel:
		return "kernel"
	case CmdHostCall:
		return "host_call"
	case CmdCopyD2D:
		return "copy_d2d"
	case CmdCopyH2D:
		return "copy_h2d"
	case CmdCopyD2H:
		return "copy_d2h"
	case CmdFill:
		return "fill"
	case CmdGemm:
		return "gemm"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is an abstract device command: a closed tagged variant.
// Exactly one of the payload pointers matching Kind is non-nil.
// Commands reference allocations by id and never mutate queue or
// event identities.
type Command struct {
	Kind CommandKind `json:"kind"`

	Kernel *KernelCommand `json:"kernel,omitempty"`
	Host   *HostCommand   `json:"host,omitempty"`
	Copy   *CopyCommand   `json:"copy,omitempty"`
	Fill   *FillCommand   `json:"fill,omitempty"`
	Gemm   *GemmCommand   `json:"gemm,omitempty"`
}

// KernelCommand launches a templated kernel with the given shape and
// allocation arguments.
type KernelCommand struct {
	Template TemplateRef `json:"template"`
	Shape    LaunchShape `json:"shape"`
	Args     []AllocID   `json:"args"`
}

// HostCommand invokes a host function, optionally instantiated from a
// host-domain template.
type HostCommand struct {
	Template TemplateRef `json:"template"`
	Args     []AllocID   `json:"args"`
}

// CopyCommand moves Bytes between Src and Dst. For H2D the source is host
// memory (Src empty); for D2H the destination is host memory (Dst empty).
type CopyCommand struct {
	Dst   AllocID `json:"dst,omitempty"`
	Src   AllocID `json:"src,omitempty"`
	Bytes int64   `json:"bytes"`
}

// FillCommand sets Bytes bytes of Dst to Pattern.
type FillCommand struct {
	Dst     AllocID `json:"dst"`
	Pattern uint8   `json:"pattern"`
	Bytes   int64   `json:"bytes"`
}

// GemmCommand is C = A * B with row-major M x K and K x N operands.
type GemmCommand struct {
	A AllocID `json:"a"`
	B AllocID `json:"b"`
	C AllocID `json:"c"`
	M int64   `json:"m"`
	N int64   `json:"n"`
	K int64   `json:"k"`
}

// AllocRefs returns the allocation ids the command references, in argument
// order. Used by plan validation.
func (c Command) AllocRefs() []AllocID {
	switch c.Kind {
	case CmdKernel:
		return c.Kernel.Args
	case CmdHostCall:
		return c.Host.Args
	case CmdCopyD2D:
		return []AllocID{c.Copy.Dst, c.Copy.Src}
	case CmdCopyH2D:
		return []AllocID{c.Copy.Dst}
	case CmdCopyD2H:
		return []AllocID{c.Copy.Src}
	case CmdFill:
		return []AllocID{c.Fill.Dst}
	case CmdGemm:
		return []AllocID{c.Gemm.A, c.Gemm.B, c.Gemm.C}
	default:
		return nil
	}
}

// ItemKind tags the closed set of per-queue lane items.
type ItemKind int

const (
	// ItemPerform executes an abstract command on the queue.
	ItemPerform ItemKind = iota + 1
	// ItemEmit records a synchronization event on the queue.
	ItemEmit
	// ItemWait makes the queue wait for an event emitted elsewhere.
	ItemWait
	// ItemUnitBegin marks the start of one execution unit's items.
	ItemUnitBegin
	// ItemUnitEnd marks the end of one execution unit's items.
	ItemUnitEnd
)

// String returns the item kind name used in plans and diagnostics.
func (k ItemKind) String() string {
	switch k {
	case ItemPerform:
		return "perform"
	case ItemEmit:
		return "emit"
	case ItemWait:
		return "wait"
	case ItemUnitBegin:
		return "unit_begin"
	case ItemUnitEnd:
		return "unit_end"
	default:
		return fmt.Sprintf("ItemKind(%d)", int(k))
	}
}

// Item is one lane item in a queue's ordered list: a tagged variant of
// perform / emit / wait plus unit scope markers. The payload matching Kind
// is set; the others are zero.
type Item struct {
	Kind    ItemKind `json:"kind"`
	Perform *Command `json:"perform,omitempty"`
	Event   EventRef `json:"event,omitempty"`
	Unit    string   `json:"unit,omitempty"`
}

// QueueItems is the immutable FIFO item list assigned to one queue.
// The sequencer drains it strictly in order.
type QueueItems struct {
	Queue QueueID `json:"queue"`
	Items []Item  `json:"items"`
}

// Perform builds a perform item.
func Perform(cmd Command) Item {
	return Item{Kind: ItemPerform, Perform: &cmd}
}

// Emit builds an emit item for the given event reference.
func Emit(ref EventRef) Item {
	return Item{Kind: ItemEmit, Event: ref}
}

// Wait builds a wait item for the given event reference.
func Wait(ref EventRef) Item {
	return Item{Kind: ItemWait, Event: ref}
}

// UnitBegin builds a unit-begin marker.
func UnitBegin(name string) Item {
	return Item{Kind: ItemUnitBegin, Unit: name}
}

// UnitEnd builds a unit-end marker.
func UnitEnd(name string) Item {
	return Item{Kind: ItemUnitEnd, Unit: name}
}

// String renders the item for diagnostics and deadlock reports.
func (it Item) String() string {
	switch it.Kind {
	case ItemPerform:
		return fmt.Sprintf("perform(%s)", it.Perform.Kind)
	case ItemEmit:
		return fmt.Sprintf("emit(%s corr=%d)", it.Event.Event, it.Event.Corr)
	case ItemWait:
		return fmt.Sprintf("wait(%s corr=%d)", it.Event.Event, it.Event.Corr)
	case ItemUnitBegin:
		return fmt.Sprintf("unit_begin(%s)", it.Unit)
	case ItemUnitEnd:
		return fmt.Sprintf("unit_end(%s)", it.Unit)
	default:
		return it.Kind.String()
	}
}
