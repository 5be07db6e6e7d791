package testutil

import "github.com/kilnware/kiln/internal/ir"

// Builders for the IR structures tests assemble most often. Each returns
// a value, not a pointer, so tests can compose them inline.

// Alloc builds an allocation descriptor.
func Alloc(id string, t ir.ScalarType, count int64) ir.Alloc {
	return ir.Alloc{ID: ir.AllocID(id), Type: t, Count: count}
}

// Queue builds a queue item list.
func Queue(id int64, items ...ir.Item) ir.QueueItems {
	return ir.QueueItems{Queue: ir.QueueID(id), Items: items}
}

// Emit builds an emit item for event/corr.
func Emit(event string, corr int64) ir.Item {
	return ir.Emit(ir.EventRef{Event: ir.EventID(event), Corr: ir.CorrID(corr)})
}

// Wait builds a wait item for event/corr.
func Wait(event string, corr int64) ir.Item {
	return ir.Wait(ir.EventRef{Event: ir.EventID(event), Corr: ir.CorrID(corr)})
}

// Kernel builds a perform item launching a single-type-arg kernel
// template with a trivial 1x1x1 shape.
func Kernel(template string, t ir.ScalarType, args ...string) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdKernel, Kernel: &ir.KernelCommand{
		Template: ir.TemplateRef{Domain: ir.DomainKernel, Name: template, TypeArgs: []ir.ScalarType{t}},
		Shape:    ir.LaunchShape{GridX: 1, GridY: 1, GridZ: 1, BlockX: 1, BlockY: 1, BlockZ: 1},
		Args:     allocIDs(args),
	}})
}

// HostCall builds a perform item invoking a single-type-arg host template.
func HostCall(template string, t ir.ScalarType, args ...string) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdHostCall, Host: &ir.HostCommand{
		Template: ir.TemplateRef{Domain: ir.DomainHost, Name: template, TypeArgs: []ir.ScalarType{t}},
		Args:     allocIDs(args),
	}})
}

// CopyD2D builds a device-to-device copy perform item.
func CopyD2D(dst, src string, bytes int64) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdCopyD2D, Copy: &ir.CopyCommand{
		Dst: ir.AllocID(dst), Src: ir.AllocID(src), Bytes: bytes,
	}})
}

// CopyH2D builds a host-to-device copy perform item.
func CopyH2D(dst string, bytes int64) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdCopyH2D, Copy: &ir.CopyCommand{
		Dst: ir.AllocID(dst), Bytes: bytes,
	}})
}

// CopyD2H builds a device-to-host copy perform item.
func CopyD2H(src string, bytes int64) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdCopyD2H, Copy: &ir.CopyCommand{
		Src: ir.AllocID(src), Bytes: bytes,
	}})
}

// Fill builds a fill perform item.
func Fill(dst string, pattern uint8, bytes int64) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdFill, Fill: &ir.FillCommand{
		Dst: ir.AllocID(dst), Pattern: pattern, Bytes: bytes,
	}})
}

// Gemm builds a gemm perform item.
func Gemm(a, b, c string, m, n, k int64) ir.Item {
	return ir.Perform(ir.Command{Kind: ir.CmdGemm, Gemm: &ir.GemmCommand{
		A: ir.AllocID(a), B: ir.AllocID(b), C: ir.AllocID(c), M: m, N: n, K: k,
	}})
}

func allocIDs(args []string) []ir.AllocID {
	ids := make([]ir.AllocID, len(args))
	for i, a := range args {
		ids[i] = ir.AllocID(a)
	}
	return ids
}
