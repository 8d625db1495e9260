package sandbox

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// isDynamicBinary reports whether binary carries a PT_INTERP program
// header, i.e. needs a dynamic linker at runtime. debug/elf is stdlib,
// but this is the header parser itself, not an ambient concern a
// third-party library would otherwise cover - there's no general-purpose
// ELF parsing library to reach for here instead.
func isDynamicBinary(path string) (bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s as ELF: %w", path, err)
	}
	defer f.Close()

	for _, prog := range f.Progs {
		if prog.Type == elf.PT_INTERP {
			return true, nil
		}
	}
	return false, nil
}

// buildExecutionRootfs assembles a minimal root filesystem under tmpDir
// containing only the sandboxed binary (as /player) and, if the binary
// is dynamically linked, a read-only bind mount of /usr with /lib and
// /lib64 symlinked the way the host layout expects. It then pivot_roots
// into tmpDir and discards the old root.
func buildExecutionRootfs(binary, tmpDir string) (string, error) {
	if err := os.MkdirAll(filepath.Join(tmpDir, "dev"), 0o755); err != nil {
		return "", fmt.Errorf("create dev dir: %w", err)
	}
	oldRoot := filepath.Join(tmpDir, "oldroot")
	if err := os.MkdirAll(oldRoot, 0o755); err != nil {
		return "", fmt.Errorf("create oldroot dir: %w", err)
	}

	dest := filepath.Join(tmpDir, "player")
	if err := copyFile(binary, dest, 0o755); err != nil {
		return "", fmt.Errorf("copy binary into rootfs: %w", err)
	}

	dynamic, err := isDynamicBinary(dest)
	if err != nil {
		return "", err
	}
	if dynamic {
		if err := mountSystemLibraries(tmpDir); err != nil {
			return "", err
		}
	}

	if err := unix.Mount(tmpDir, tmpDir, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return "", fmt.Errorf("bind mount new root: %w", err)
	}

	if err := unix.PivotRoot(tmpDir, oldRoot); err != nil {
		return "", fmt.Errorf("pivot_root: %w", err)
	}

	if err := unix.Chdir("/"); err != nil {
		return "", fmt.Errorf("chdir to new root: %w", err)
	}

	if err := unix.Unmount("/oldroot", unix.MNT_DETACH); err != nil {
		return "", fmt.Errorf("detach oldroot: %w", err)
	}

	if err := os.Remove("/oldroot"); err != nil {
		return "", fmt.Errorf("remove oldroot: %w", err)
	}

	return "/player", nil
}

func mountSystemLibraries(tmpDir string) error {
	usrDir := filepath.Join(tmpDir, "usr")
	if err := os.MkdirAll(usrDir, 0o755); err != nil {
		return fmt.Errorf("create usr dir: %w", err)
	}

	if err := unix.Mount("/usr", usrDir, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind mount /usr: %w", err)
	}
	if err := unix.Mount("", usrDir, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
		return fmt.Errorf("remount /usr read-only: %w", err)
	}

	if err := os.Symlink("usr/lib", filepath.Join(tmpDir, "lib")); err != nil {
		return fmt.Errorf("symlink /lib: %w", err)
	}
	lib64Target := "usr/lib64"
	if _, err := os.Stat("/usr/lib64"); err != nil {
		lib64Target = "usr/lib"
	}
	if err := os.Symlink(lib64Target, filepath.Join(tmpDir, "lib64")); err != nil {
		return fmt.Errorf("symlink /lib64: %w", err)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Chmod(mode)
}
