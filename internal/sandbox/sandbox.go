// Package sandbox isolates plugin import and initialization under a hard
// deadline. Two modes exist: subprocess isolation spawns a worker process
// whose sole job is to import the plugin and report the outcome, so a
// crashing or hanging plugin cannot corrupt the factory's process state;
// in-process mode interprets the plugin directly and is meant for trusted
// paths such as tests. Both modes convert failures into the typed error
// taxonomy in internal/types.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"overmind/internal/logging"
	"overmind/internal/manifest"
	"overmind/internal/types"
)

// ProbeCommand is the hidden CLI subcommand the subprocess worker runs under.
const ProbeCommand = "sandbox-probe"

// maxStderrReport caps how much worker stderr is carried into an error.
const maxStderrReport = 2048

// Sandbox performs isolated plugin imports.
type Sandbox struct {
	// execPath is the binary spawned for subprocess probes. Defaults to the
	// current executable.
	execPath string
}

// New returns a sandbox whose subprocess workers re-exec the current binary.
func New() *Sandbox {
	execPath, err := os.Executable()
	if err != nil {
		// Subprocess probes will fail with a clear error; in-process mode
		// is unaffected.
		logging.SandboxWarn("cannot resolve own executable: %v", err)
		execPath = ""
	}
	return &Sandbox{execPath: execPath}
}

// NewWithExecPath returns a sandbox spawning the given binary for subprocess
// probes. Used by tests.
func NewWithExecPath(execPath string) *Sandbox {
	return &Sandbox{execPath: execPath}
}

// ImportInSandbox imports and initializes the plugin entry under the given
// deadline. It returns nil on success, types.KindSandboxTimeout when the
// deadline expires, and types.KindSandboxImport for any failure inside the
// plugin. The instance constructed during the probe is discarded; use
// Instantiate to obtain one.
func (s *Sandbox) ImportInSandbox(ctx context.Context, m *manifest.Manifest, useSubprocess bool, timeout time.Duration) error {
	timer := logging.StartTimer(logging.CategorySandbox, fmt.Sprintf("import %s", m.Name))
	defer timer.StopWithThreshold(timeout / 2)

	if useSubprocess {
		return s.importSubprocess(ctx, m, timeout)
	}
	_, err := s.importInProcess(ctx, m, timeout)
	return err
}

// SafeImport is a best-effort wrapper around ImportInSandbox: any planner
// error is swallowed and reported as ok=false. Used for speculative lookups
// such as metadata refresh, never for the primary selection path.
func (s *Sandbox) SafeImport(ctx context.Context, m *manifest.Manifest, useSubprocess bool, timeout time.Duration) bool {
	if err := s.ImportInSandbox(ctx, m, useSubprocess, timeout); err != nil {
		if types.IsPlannerError(err) {
			logging.SandboxDebug("safe import of %s swallowed: %v", m.Name, err)
			return false
		}
		logging.SandboxWarn("safe import of %s failed unexpectedly: %v", m.Name, err)
		return false
	}
	return true
}

// Instantiate constructs a planner instance in-process under the deadline.
// Instances cannot cross a process boundary, so instantiation always
// interprets in-process; subprocess isolation applies to the import probes
// that precede it.
func (s *Sandbox) Instantiate(ctx context.Context, m *manifest.Manifest, timeout time.Duration) (interface{}, error) {
	return s.importInProcess(ctx, m, timeout)
}

// importSubprocess spawns an isolated worker to import the plugin. The
// worker is forcibly terminated when the deadline expires.
func (s *Sandbox) importSubprocess(ctx context.Context, m *manifest.Manifest, timeout time.Duration) error {
	if s.execPath == "" {
		return types.NewSandboxImportError(m.Name, fmt.Errorf("no worker executable available"))
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, s.execPath, ProbeCommand, "--entry", m.EntryPath)
	cmd.Env = workerEnvironment()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.SandboxDebug("spawning probe worker: %s %s --entry %s (timeout=%v)",
		s.execPath, ProbeCommand, m.EntryPath, timeout)

	err := cmd.Run()
	if err == nil {
		logging.SandboxDebug("probe worker for %s succeeded", m.Name)
		return nil
	}

	// CommandContext kills the worker on expiry; report it as a timeout
	// rather than a generic failure.
	if execCtx.Err() == context.DeadlineExceeded {
		logging.SandboxWarn("probe worker for %s killed after %v", m.Name, timeout)
		return types.NewSandboxTimeout(m.Name, timeout)
	}
	if execCtx.Err() == context.Canceled {
		return types.NewSandboxImportError(m.Name, context.Canceled)
	}

	msg := strings.TrimSpace(stderr.String())
	if len(msg) > maxStderrReport {
		msg = msg[:maxStderrReport]
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && msg != "" {
		return types.NewSandboxImportError(m.Name, fmt.Errorf("%s", msg))
	}
	return types.NewSandboxImportError(m.Name, err)
}

// importInProcess interprets the entry source on the calling process,
// bounding the constructor call with the deadline. The plugin goroutine
// cannot be forcibly killed; a timed-out constructor is abandoned and its
// result discarded.
func (s *Sandbox) importInProcess(ctx context.Context, m *manifest.Manifest, timeout time.Duration) (interface{}, error) {
	source, err := os.ReadFile(m.EntryPath)
	if err != nil {
		return nil, types.NewSandboxImportError(m.Name, fmt.Errorf("failed to read entry: %w", err))
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type evalResult struct {
		instance interface{}
		err      error
	}
	resultCh := make(chan evalResult, 1)

	go func() {
		instance, err := evalEntry(string(source))
		resultCh <- evalResult{instance: instance, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, types.NewSandboxImportError(m.Name, res.err)
		}
		return res.instance, nil
	case <-execCtx.Done():
		if execCtx.Err() == context.DeadlineExceeded {
			logging.SandboxWarn("in-process import of %s abandoned after %v", m.Name, timeout)
			return nil, types.NewSandboxTimeout(m.Name, timeout)
		}
		return nil, types.NewSandboxImportError(m.Name, execCtx.Err())
	}
}

// workerEnvironment builds the minimal environment passed to probe workers.
func workerEnvironment() []string {
	env := make([]string, 0, 2)
	for _, key := range []string{"PATH", "HOME"} {
		if val := os.Getenv(key); val != "" {
			env = append(env, fmt.Sprintf("%s=%s", key, val))
		}
	}
	return env
}
