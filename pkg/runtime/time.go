// Package runtime exposes the Go scheduler's own monotonic clock so hot paths
// (transaction timing, recovery-scan timing) can measure elapsed time without
// paying for a full time.Now() allocation-free but slightly heavier call.
package runtime

import (
	_ "unsafe" // for go:linkname
)

// NanoTime returns the current time in nanoseconds from a monotonic clock.
// Its readings are only meaningful within one process; no package in this
// repository calls it.
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64

// CPUTicks is a faster alternative to NanoTime to measure time duration.
//
//go:linkname CPUTicks runtime.cputicks
func CPUTicks() int64
