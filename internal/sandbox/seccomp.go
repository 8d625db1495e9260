package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allowedExecutionSyscalls is the execution seccomp filter's allowlist:
// syscalls a compiled player or referee binary needs for I/O, memory
// management, and clean process exit, and nothing else. Anything not on
// this list returns EPERM instead of running.
var allowedExecutionSyscalls = []uintptr{
	unix.SYS_READ, unix.SYS_WRITE, unix.SYS_WRITEV, unix.SYS_READV,
	unix.SYS_PREAD64, unix.SYS_PWRITE64, unix.SYS_LSEEK,
	unix.SYS_IOCTL, unix.SYS_FCNTL,
	unix.SYS_OPEN, unix.SYS_OPENAT, unix.SYS_CLOSE,
	unix.SYS_STAT, unix.SYS_FSTAT, unix.SYS_LSTAT, unix.SYS_NEWFSTATAT, unix.SYS_STATX,
	unix.SYS_ACCESS, unix.SYS_FACCESSAT, unix.SYS_FACCESSAT2,
	unix.SYS_READLINK, unix.SYS_READLINKAT,
	unix.SYS_MMAP, unix.SYS_MPROTECT, unix.SYS_MUNMAP, unix.SYS_BRK,
	unix.SYS_RT_SIGACTION, unix.SYS_RT_SIGPROCMASK, unix.SYS_RT_SIGRETURN,
	unix.SYS_EXECVE, unix.SYS_EXIT, unix.SYS_EXIT_GROUP,
	unix.SYS_GETPID, unix.SYS_GETUID, unix.SYS_GETEUID, unix.SYS_GETGID, unix.SYS_GETEGID, unix.SYS_GETTID,
	unix.SYS_FUTEX,
	unix.SYS_CLOCK_GETTIME, unix.SYS_CLOCK_NANOSLEEP, unix.SYS_NANOSLEEP,
	unix.SYS_GETRANDOM, unix.SYS_ARCH_PRCTL, unix.SYS_SET_TID_ADDRESS, unix.SYS_SET_ROBUST_LIST,
	unix.SYS_PRLIMIT64, unix.SYS_GETRLIMIT, unix.SYS_RSEQ,
	unix.SYS_UNAME, unix.SYS_GETCWD, unix.SYS_GETDENTS64, unix.SYS_PRCTL,
	unix.SYS_SCHED_GETAFFINITY, unix.SYS_SCHED_YIELD,
	unix.SYS_POLL, unix.SYS_PPOLL, unix.SYS_SELECT, unix.SYS_PSELECT6,
	unix.SYS_EPOLL_CREATE, unix.SYS_EPOLL_CREATE1, unix.SYS_EPOLL_CTL, unix.SYS_EPOLL_WAIT, unix.SYS_EPOLL_PWAIT,
	unix.SYS_PIPE, unix.SYS_PIPE2, unix.SYS_DUP, unix.SYS_DUP2, unix.SYS_DUP3,
}

// BPF classic filter opcodes. No Go library offers a seccomp-bpf
// builder at the right abstraction level, so this program is built by
// hand against the raw unix.SockFilter/SockFprog structures x/sys/unix
// already exposes for classic BPF.
const (
	bpfLd  = 0x00
	bpfJmp = 0x05
	bpfRet = 0x06
	bpfW   = 0x00
	bpfAbs = 0x20
	bpfJeq = 0x10
	bpfK   = 0x00

	seccompRetAllow = 0x7fff0000
	seccompRetErrno = 0x00050000 // OR'd with the errno value

	// offsetof(struct seccomp_data, nr) on every Linux arch.
	seccompDataNrOffset = 0
)

func stmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: 0, Jf: 0, K: k}
}

func jumpEQ(k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: bpfJmp | bpfJeq | bpfK, Jt: jt, Jf: jf, K: k}
}

// buildExecutionFilter compiles the allowlist into a classic BPF
// program: load the syscall number, compare against each allowed
// syscall in turn, allow on match, and fall through to EPERM otherwise.
func buildExecutionFilter() []unix.SockFilter {
	n := len(allowedExecutionSyscalls)
	program := make([]unix.SockFilter, 0, n+3)
	program = append(program, stmt(bpfLd|bpfW|bpfAbs, seccompDataNrOffset))

	for i, sc := range allowedExecutionSyscalls {
		remaining := uint8(n - i - 1)
		// jt=remaining+1 jumps straight to the ALLOW return that follows all the
		// comparisons; jf falls through to the next comparison (or, on
		// the last one, to the EPERM return right after).
		program = append(program, jumpEQ(uint32(sc), uint8(remaining)+1, 0))
	}
	program = append(program, stmt(bpfRet|bpfK, seccompRetErrno|uint32(unix.EPERM)))
	program = append(program, stmt(bpfRet|bpfK, seccompRetAllow))
	return program
}

// ApplyExecutionFilter installs the execution seccomp filter on the
// calling thread. It must run after the sandboxed binary's rootfs and
// namespaces are set up and immediately before exec, since it cannot be
// undone for the lifetime of the process.
func ApplyExecutionFilter() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no_new_privs: %w", err)
	}

	filter := buildExecutionFilter()
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}

	_, _, errno := unix.RawSyscall(unix.SYS_PRCTL, unix.PR_SET_SECCOMP, uintptr(unix.SECCOMP_MODE_FILTER), uintptr(unsafe.Pointer(&prog)))
	if errno != 0 {
		return fmt.Errorf("install seccomp filter: %w", errno)
	}
	return nil
}
