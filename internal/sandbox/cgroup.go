package sandbox

import (
	"fmt"
	"log"

	"github.com/containerd/cgroups/v3/cgroup2"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Handle owns one cgroup for the lifetime of a single sandboxed process.
// Close always kills every process left in the cgroup and deletes it,
// unconditionally, so a panicking caller never leaks a cgroup.
type Handle struct {
	manager *cgroup2.Manager
	path    string
}

// NewCompilationCgroup scopes a cgroup for compiling one submission.
func NewCompilationCgroup(submissionID string, limits ResourceLimits) (*Handle, error) {
	return newCgroup(fmt.Sprintf("/judge/compilation/submission_%s", submissionID), limits)
}

// NewExecutionCgroup scopes a cgroup for running one referee or player
// process.
func NewExecutionCgroup(processID string, limits ResourceLimits) (*Handle, error) {
	return newCgroup(fmt.Sprintf("/judge/execution/process_%s", processID), limits)
}

// toOCIResources expresses limits as an OCI LinuxResources struct, the
// same typed shape a container runtime hands its shim. Building this
// first and translating it into cgroup2's fields keeps the unit
// conversion (shares to quota, bytes to a pointer) in one place instead
// of inlined into the manager call.
func toOCIResources(limits ResourceLimits) *specs.LinuxResources {
	memLimit := limits.MemoryBytes
	cpuPeriod := uint64(100000)
	cpuQuota := int64(limits.CPUShares) * int64(cpuPeriod) / 1024
	cpuShares := limits.CPUShares
	pidLimit := limits.PIDLimit

	return &specs.LinuxResources{
		Memory: &specs.LinuxMemory{Limit: &memLimit},
		CPU: &specs.LinuxCPU{
			Shares: &cpuShares,
			Quota:  &cpuQuota,
			Period: &cpuPeriod,
		},
		Pids: &specs.LinuxPids{Limit: pidLimit},
	}
}

// toCgroup2Resources translates an OCI resource spec into the cgroup v2
// unified-hierarchy fields containerd's manager writes to disk.
func toCgroup2Resources(res *specs.LinuxResources) *cgroup2.Resources {
	return &cgroup2.Resources{
		Memory: &cgroup2.Memory{Max: res.Memory.Limit},
		CPU:    &cgroup2.CPU{Max: fmt.Sprintf("%d %d", *res.CPU.Quota, *res.CPU.Period)},
		Pids:   &cgroup2.Pids{Max: res.Pids.Limit},
	}
}

func newCgroup(path string, limits ResourceLimits) (*Handle, error) {
	// Delete any leftover cgroup at this path before creating a fresh
	// one: a crashed previous run could have left the path behind with
	// no processes in it, which would otherwise make NewManager fail.
	if existing, err := cgroup2.Load(path); err == nil {
		_ = existing.Delete()
	}

	resources := toCgroup2Resources(toOCIResources(limits))

	manager, err := cgroup2.NewManager("/sys/fs/cgroup", path, resources)
	if err != nil {
		return nil, fmt.Errorf("create cgroup %s: %w", path, err)
	}

	return &Handle{manager: manager, path: path}, nil
}

// AddProcess moves pid into this sandbox's cgroup.
func (h *Handle) AddProcess(pid int) error {
	if err := h.manager.AddProc(uint64(pid)); err != nil {
		return fmt.Errorf("add process %d to cgroup %s: %w", pid, h.path, err)
	}
	return nil
}

// Close kills every process in the cgroup and deletes it. Safe to call
// more than once.
func (h *Handle) Close() {
	if h == nil || h.manager == nil {
		return
	}
	if err := h.manager.Kill(); err != nil {
		log.Printf("[SANDBOX] kill cgroup %s: %v", h.path, err)
	}
	if err := h.manager.Delete(); err != nil {
		log.Printf("[SANDBOX] delete cgroup %s: %v", h.path, err)
	}
	h.manager = nil
}
