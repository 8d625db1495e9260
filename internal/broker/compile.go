package broker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"tournament-judge/internal/sandbox"
)

// CompileQueue rate-limits how often submissions are compiled, so a
// burst of new submissions cannot starve the host of CPU the way an
// unbounded fan-out of compiler invocations would.
type CompileQueue struct {
	limiter   *rate.Limiter
	workspace string
}

// NewCompileQueue allows at most burst compilations at once, refilling
// at perSecond per second thereafter.
func NewCompileQueue(workspace string, perSecond float64, burst int) *CompileQueue {
	return &CompileQueue{
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		workspace: workspace,
	}
}

// Compile waits for a rate-limiter slot, writes source to a workspace
// directory, and runs the compiler directly on the host, bounded only by
// DefaultCompilationLimits.WallClockTimeout. No cgroup, namespace or
// seccomp isolation is applied to the compiler process. It returns the path to the resulting binary, or an *UnsupportedLanguage
// error if language has no known compiler.
func (q *CompileQueue) Compile(ctx context.Context, submissionID, language, source string) (string, error) {
	template, ok := compilers[language]
	if !ok {
		return "", &UnsupportedLanguage{Language: language}
	}
	filename := sourceFilenames[language]

	if err := q.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("broker: wait for compile slot: %w", err)
	}

	workDir := filepath.Join(q.workspace, "submission_"+submissionID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("broker: create compile workspace: %w", err)
	}

	sourcePath := filepath.Join(workDir, filename)
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("broker: write source file: %w", err)
	}

	binPath := filepath.Join(workDir, "player")
	args := substitute(template, sourcePath, binPath)

	log.Printf("[BROKER] compiling submission %s (%s)", submissionID, language)

	compileCtx, cancel := context.WithTimeout(ctx, sandbox.DefaultCompilationLimits.WallClockTimeout)
	defer cancel()

	cmd := exec.CommandContext(compileCtx, args[0], args[1:]...)
	cmd.Dir = workDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("broker: compile submission %s: %w: %s", submissionID, err, truncate(output, 4096))
	}

	return binPath, nil
}

func substitute(template []string, src, bin string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, "{src}", src)
		arg = strings.ReplaceAll(arg, "{bin}", bin)
		out[i] = arg
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}
