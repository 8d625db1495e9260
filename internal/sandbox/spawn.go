package sandbox

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// reexecArg marks a re-exec of this binary into the sandbox init stage:
// Spawn launches /proc/self/exe with this as argv[1] instead of forking
// straight into the target binary, so rootfs and seccomp setup can run
// inside the new mount/pid namespace before anything untrusted executes.
// Every cmd/ entrypoint that calls Spawn must call MaybeRunSandboxInit
// first thing in main.
const reexecArg = "__tournament_judge_sandbox_init__"

const (
	envBinary  = "TJ_SANDBOX_BINARY"
	envArgs    = "TJ_SANDBOX_ARGS"
	envWorkDir = "TJ_SANDBOX_WORKDIR"
)

// Process is a running sandboxed subprocess. internal/broker talks to it
// over Stdin/Stdout; Wait and Kill release the cgroup.
type Process struct {
	cmd    *exec.Cmd
	cgroup *Handle
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// Stdin is the sandboxed process's standard input.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout is the sandboxed process's standard output.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// Spawn launches spec.Binary inside a fresh sandbox: a cgroup with
// spec.Limits applied, a pivot_root'd filesystem containing only the
// binary (plus /usr if it is dynamically linked), and the execution
// seccomp filter. The returned Process exposes the child's stdin/stdout
// for the broker's line protocol.
func Spawn(spec SpawnSpec) (*Process, error) {
	if spec.ID == "" || spec.Binary == "" {
		return nil, fmt.Errorf("sandbox: spec requires ID and Binary")
	}
	if spec.Limits.MemoryBytes == 0 || spec.Limits.CPUShares == 0 || spec.Limits.PIDLimit == 0 || spec.Limits.WallClockTimeout == 0 {
		return nil, fmt.Errorf("sandbox: spec requires non-zero resource limits")
	}

	var cgroup *Handle
	var err error
	switch spec.Kind {
	case "compilation":
		cgroup, err = NewCompilationCgroup(spec.ID, spec.Limits)
	default:
		cgroup, err = NewExecutionCgroup(spec.ID, spec.Limits)
	}
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		cgroup.Close()
		return nil, fmt.Errorf("resolve own executable: %w", err)
	}

	cmd := exec.Command(self, reexecArg)
	cmd.Env = append(os.Environ(),
		envBinary+"="+spec.Binary,
		envArgs+"="+strings.Join(spec.Args, "\x00"),
		envWorkDir+"="+spec.WorkDir,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC,
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cgroup.Close()
		return nil, fmt.Errorf("attach stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cgroup.Close()
		return nil, fmt.Errorf("attach stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cgroup.Close()
		return nil, fmt.Errorf("start sandboxed process: %w", err)
	}

	if err := cgroup.AddProcess(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		cgroup.Close()
		return nil, err
	}

	return &Process{cmd: cmd, cgroup: cgroup, stdin: stdin, stdout: stdout}, nil
}

// Wait blocks until the sandboxed process exits and releases its
// cgroup. The returned exit code is -1 if the process could not be
// waited on at all (e.g. it was never started).
func (p *Process) Wait() (exitCode int, err error) {
	defer p.cgroup.Close()
	waitErr := p.cmd.Wait()
	if waitErr == nil {
		return 0, nil
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, waitErr
}

// Kill terminates the sandboxed process and releases its cgroup.
func (p *Process) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cgroup.Close()
}

// MaybeRunSandboxInit checks whether the current process was re-exec'd
// by Spawn to act as a sandbox init stage. If so it builds the rootfs,
// applies the seccomp filter, and execve's the real binary - and never
// returns. Every cmd/ main must call this before doing anything else.
func MaybeRunSandboxInit() {
	if len(os.Args) < 2 || os.Args[1] != reexecArg {
		return
	}

	binary := os.Getenv(envBinary)
	workDir := os.Getenv(envWorkDir)
	var args []string
	if raw := os.Getenv(envArgs); raw != "" {
		args = strings.Split(raw, "\x00")
	}

	execPath, err := buildExecutionRootfs(binary, workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox init: rootfs setup failed: %v\n", err)
		os.Exit(1)
	}

	if err := ApplyExecutionFilter(); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox init: seccomp setup failed: %v\n", err)
		os.Exit(1)
	}

	argv := append([]string{execPath}, args...)
	if err := unix.Exec(execPath, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox init: exec failed: %v\n", err)
		os.Exit(1)
	}
}
