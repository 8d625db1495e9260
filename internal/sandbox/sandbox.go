// Package sandbox builds the isolated execution environment a submission
// or referee binary runs inside: a cgroup with hard resource ceilings, a
// minimal pivot_root'd filesystem, and a seccomp syscall allowlist.
// internal/broker spawns processes through Spawn; everything else in
// this package is a building block it assembles.
package sandbox

import "time"

// ResourceLimits bounds one sandboxed process. Zero values are rejected
// by Spawn - callers must pick limits explicitly rather than rely on
// unbounded defaults.
type ResourceLimits struct {
	MemoryBytes      int64
	CPUShares        uint64
	PIDLimit         int64
	WallClockTimeout time.Duration
}

// DefaultCompilationLimits: generous memory and CPU since a compiler
// needs headroom, a tight PID limit since a compiler shouldn't fork a
// process tree.
var DefaultCompilationLimits = ResourceLimits{
	MemoryBytes:      1 << 30, // 1 GiB
	CPUShares:        1024,
	PIDLimit:         32,
	WallClockTimeout: 30 * time.Second,
}

// DefaultExecutionLimits: tight memory and a small PID limit (4), since
// a player binary is not expected to fork.
var DefaultExecutionLimits = ResourceLimits{
	MemoryBytes:      256 << 20, // 256 MiB
	CPUShares:        512,
	PIDLimit:         4,
	WallClockTimeout: 5 * time.Second,
}

// SpawnSpec describes everything Spawn needs to launch one sandboxed
// process.
type SpawnSpec struct {
	// ID namespaces this sandbox's cgroup, e.g. a submission or match id.
	ID string
	// Kind is either "compilation" or "execution", used to name and
	// scope the cgroup (judge/compilation/submission_<id> vs
	// judge/execution/process_<id>).
	Kind     string
	Binary   string
	Args     []string
	WorkDir  string
	Limits   ResourceLimits
}
