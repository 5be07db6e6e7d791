package ir

import "fmt"

// CallKind tags the closed set of concrete device API calls a recipe
// replays. Init, dispose, and exec lists all use the same variant.
type CallKind int

const (
	// CallAllocBuffer allocates a device buffer.
	CallAllocBuffer CallKind = iota + 1
	// CallFreeBuffer frees a device buffer.
	CallFreeBuffer
	// CallCreateQueue creates a hardware command queue.
	CallCreateQueue
	// CallDestroyQueue destroys a hardware command queue.
	CallDestroyQueue
	// CallCreateEvent creates an event with a wait multiplicity.
	CallCreateEvent
	// CallDestroyEvent destroys an event.
	CallDestroyEvent
	// CallRecordEvent records an event on the producing queue.
	CallRecordEvent
	// CallWaitEvent makes a queue wait on a recorded event.
	CallWaitEvent
	// CallLaunchKernel launches an instantiated kernel wrapper.
	CallLaunchKernel
	// CallHostFunc invokes an instantiated host wrapper.
	CallHostFunc
	// CallCopyD2D is a device-to-device copy.
	CallCopyD2D
	// CallCopyH2D is a host-to-device copy.
	CallCopyH2D
	// CallCopyD2H is a device-to-host copy.
	CallCopyD2H
	// CallFill is a device memory fill.
	CallFill
	// CallGemm is a BLAS-style matrix multiply.
	CallGemm
)

// String returns the call kind name used in traces and golden files.
func (k CallKind) String() string {
	switch k {
	case CallAllocBuffer:
		return "alloc_buffer"
	case CallFreeBuffer:
		return "free_buffer"
	case CallCreateQueue:
		return "create_queue"
	case CallDestroyQueue:
		return "destroy_queue"
	case CallCreateEvent:
		return "create_event"
	case CallDestroyEvent:
		return "destroy_event"
	case CallRecordEvent:
		return "record_event"
	case CallWaitEvent:
		return "wait_event"
	case CallLaunchKernel:
		return "launch_kernel"
	case CallHostFunc:
		return "host_func"
	case CallCopyD2D:
		return "copy_d2d"
	case CallCopyH2D:
		return "copy_h2d"
	case CallCopyD2H:
		return "copy_d2h"
	case CallFill:
		return "fill"
	case CallGemm:
		return "gemm"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// Call is one concrete device API call. Seq is a monotonic stamp from the
// assembler's logical clock; it makes traces and golden files deterministic
// without relying on slice position.
//
// Field usage by kind:
//   - AllocBuffer/FreeBuffer: Alloc, Bytes (alloc only)
//   - CreateQueue/DestroyQueue: Queue
//   - CreateEvent: Event, Multiplicity; DestroyEvent: Event
//   - RecordEvent/WaitEvent: Queue, Event, Corr
//   - LaunchKernel: Queue, Wrapper, Shape, Args
//   - HostFunc: Queue, Wrapper, Args
//   - CopyD2D/H2D/D2H: Queue, Dst and/or Src, Bytes
//   - Fill: Queue, Dst, Pattern, Bytes
//   - Gemm: Queue, Args (A, B, C), Dims (M, N, K)
type Call struct {
	Seq  int64    `json:"seq"`
	Kind CallKind `json:"kind"`

	Queue QueueID `json:"queue,omitempty"`
	Alloc AllocID `json:"alloc,omitempty"`
	Bytes int64   `json:"bytes,omitempty"`

	Event        EventID `json:"event,omitempty"`
	Corr         CorrID  `json:"corr,omitempty"`
	Multiplicity int     `json:"multiplicity,omitempty"`

	Wrapper string       `json:"wrapper,omitempty"`
	Shape   *LaunchShape `json:"shape,omitempty"`
	Args    []AllocID    `json:"args,omitempty"`

	Dst     AllocID `json:"dst,omitempty"`
	Src     AllocID `json:"src,omitempty"`
	Pattern uint8   `json:"pattern,omitempty"`
	Dims    []int64 `json:"dims,omitempty"`
}

// TraceLine renders the call as one deterministic line for traces and
// deadlock reports. Seq is excluded so the same logical call renders
// identically regardless of where it lands in a list.
func (c Call) TraceLine() string {
	switch c.Kind {
	case CallAllocBuffer:
		return fmt.Sprintf("%s %s bytes=%d", c.Kind, c.Alloc, c.Bytes)
	case CallFreeBuffer:
		return fmt.Sprintf("%s %s", c.Kind, c.Alloc)
	case CallCreateQueue, CallDestroyQueue:
		return fmt.Sprintf("%s q%d", c.Kind, c.Queue)
	case CallCreateEvent:
		return fmt.Sprintf("%s %s multiplicity=%d", c.Kind, c.Event, c.Multiplicity)
	case CallDestroyEvent:
		return fmt.Sprintf("%s %s", c.Kind, c.Event)
	case CallRecordEvent, CallWaitEvent:
		return fmt.Sprintf("%s q%d %s corr=%d", c.Kind, c.Queue, c.Event, c.Corr)
	case CallLaunchKernel:
		return fmt.Sprintf("%s q%d %s args=%v", c.Kind, c.Queue, c.Wrapper, c.Args)
	case CallHostFunc:
		return fmt.Sprintf("%s q%d %s args=%v", c.Kind, c.Queue, c.Wrapper, c.Args)
	case CallCopyD2D:
		return fmt.Sprintf("%s q%d %s<-%s bytes=%d", c.Kind, c.Queue, c.Dst, c.Src, c.Bytes)
	case CallCopyH2D:
		return fmt.Sprintf("%s q%d %s<-host bytes=%d", c.Kind, c.Queue, c.Dst, c.Bytes)
	case CallCopyD2H:
		return fmt.Sprintf("%s q%d host<-%s bytes=%d", c.Kind, c.Queue, c.Src, c.Bytes)
	case CallFill:
		return fmt.Sprintf("%s q%d %s pattern=0x%02x bytes=%d", c.Kind, c.Queue, c.Dst, c.Pattern, c.Bytes)
	case CallGemm:
		return fmt.Sprintf("%s q%d %v dims=%v", c.Kind, c.Queue, c.Args, c.Dims)
	default:
		return fmt.Sprintf("%s", c.Kind)
	}
}
