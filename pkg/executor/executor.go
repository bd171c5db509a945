// Package executor implements the Command Executor: allowlisted,
// injection-checked child-process spawning with deadline-bound
// graceful-then-forcible termination.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
	"github.com/archmcp/mcpd/pkg/logging"
)

// forbiddenTokens are rejected anywhere in a command's argument list as
// shell-injection or path-traversal vectors.
var forbiddenTokens = []string{";", "&&", "||", "|", "..", "~"}

// forceKillGrace is the interval between a graceful termination signal
// and a forcible one.
const forceKillGrace = 5 * time.Second

// Options configures a single Execute/ExecuteWithElevation call.
type Options struct {
	WorkingDir     string
	Env            []string
	DeadlineMillis int64
	Stdin          []byte
	CaptureOutput  bool
}

// Result is the outcome of a completed or terminated command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Success  bool
	Signal   string
}

type processRecord struct {
	id      string
	cmd     *exec.Cmd
	started time.Time
}

// Executor spawns and supervises child processes on behalf of plugin
// handlers. The zero value is not usable; use New.
type Executor struct {
	mu             sync.Mutex
	processes      map[string]*processRecord
	allowedCmds    map[string]struct{}
	logger         logging.Logger
	effectiveUID   func() int
	rand           *rand.Rand
}

// New builds an Executor. allowedCommands is the configured allowlist; an
// empty list means "nothing is allowed" rather than "unrestricted".
func New(allowedCommands []string, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.New(nil, nil)
	}
	allowed := make(map[string]struct{}, len(allowedCommands))
	for _, c := range allowedCommands {
		allowed[c] = struct{}{}
	}
	return &Executor{
		processes:    make(map[string]*processRecord),
		allowedCmds:  allowed,
		logger:       logger,
		effectiveUID: os.Geteuid,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CheckCommandExists reports whether command resolves on PATH.
func (e *Executor) CheckCommandExists(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

func (e *Executor) checkAllowed(command string) error {
	base := filepath.Base(command)
	if len(e.allowedCmds) > 0 {
		if _, ok := e.allowedCmds[base]; !ok {
			return daemonerrors.InsufficientPrivileges(fmt.Sprintf("command not allowed: %s", command))
		}
	} else {
		return daemonerrors.InsufficientPrivileges(fmt.Sprintf("command not allowed: %s", command))
	}
	return nil
}

func checkInjection(tokens []string) error {
	for _, tok := range tokens {
		for _, forbidden := range forbiddenTokens {
			if strings.Contains(tok, forbidden) {
				return daemonerrors.InsufficientPrivileges(fmt.Sprintf("rejected token %q: disallowed sequence %q", tok, forbidden))
			}
		}
	}
	return nil
}

// Execute runs command with args under the allowlist/injection checks,
// enforcing options.DeadlineMillis with graceful-then-forcible
// termination.
func (e *Executor) Execute(ctx context.Context, command string, args []string, options Options) (*Result, error) {
	if err := e.checkAllowed(command); err != nil {
		return nil, err
	}
	if err := checkInjection(append([]string{command}, args...)); err != nil {
		return nil, err
	}
	return e.run(ctx, command, args, options)
}

// ExecuteWithElevation rewrites command to be invoked through a
// non-interactive elevation helper when the daemon is not already running
// as the superuser. `-n` is load-bearing: this daemon never prompts for a
// password.
func (e *Executor) ExecuteWithElevation(ctx context.Context, command string, args []string, options Options) (*Result, error) {
	if err := e.checkAllowed(command); err != nil {
		return nil, err
	}
	if err := checkInjection(append([]string{command}, args...)); err != nil {
		return nil, err
	}

	if e.effectiveUID() == 0 {
		return e.run(ctx, command, args, options)
	}

	elevatedArgs := append([]string{"-n", command}, args...)
	return e.run(ctx, "sudo", elevatedArgs, options)
}

func (e *Executor) run(ctx context.Context, command string, args []string, options Options) (*Result, error) {
	id := e.newProcessID()
	cmd := exec.Command(command, args...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = append(os.Environ(), options.Env...)
	}

	var stdout, stderr bytes.Buffer
	if options.CaptureOutput {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}
	if len(options.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(options.Stdin)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, daemonerrors.New(daemonerrors.CodeInternalError, "failed to spawn command", daemonerrors.CategoryCommand, daemonerrors.SeverityError).WithDetail(err.Error())
	}

	record := &processRecord{id: id, cmd: cmd, started: started}
	e.mu.Lock()
	e.processes[id] = record
	e.mu.Unlock()
	defer e.removeProcess(id)

	e.logger.Debug("command spawned", logging.String("id", id), logging.String("command", command))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	deadline := time.Duration(options.DeadlineMillis) * time.Millisecond
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}

	select {
	case err := <-done:
		duration := time.Since(started)
		return resultFromWait(err, stdout.String(), stderr.String(), duration), nil
	case <-time.After(deadline):
		e.logger.Warn("command exceeded deadline, sending graceful termination", logging.String("id", id))
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
			return &Result{Success: false, Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(started), ExitCode: -1}, nil
		case <-time.After(forceKillGrace):
			e.logger.Warn("command did not exit after graceful signal, forcing termination", logging.String("id", id))
			_ = cmd.Process.Kill()
			<-done
			return &Result{Success: false, Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(started), ExitCode: -1, Signal: "SIGKILL"}, nil
		}
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		<-done
		return &Result{Success: false, Duration: time.Since(started), ExitCode: -1}, ctx.Err()
	}
}

func resultFromWait(err error, stdout, stderr string, duration time.Duration) *Result {
	if err == nil {
		return &Result{ExitCode: 0, Stdout: stdout, Stderr: stderr, Duration: duration, Success: true}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return &Result{ExitCode: -1, Stdout: stdout, Stderr: stderr, Duration: duration, Success: false, Signal: status.Signal().String()}
			}
			return &Result{ExitCode: status.ExitStatus(), Stdout: stdout, Stderr: stderr, Duration: duration, Success: status.ExitStatus() == 0}
		}
		return &Result{ExitCode: exitErr.ExitCode(), Stdout: stdout, Stderr: stderr, Duration: duration, Success: false}
	}
	return &Result{ExitCode: -1, Stdout: stdout, Stderr: stderr, Duration: duration, Success: false}
}

// KillProcess sends a graceful termination signal to the process recorded
// under id, then escalates to a forcible one if it has not exited within
// forceKillGrace.
func (e *Executor) KillProcess(id string) error {
	e.mu.Lock()
	record, ok := e.processes[id]
	e.mu.Unlock()
	if !ok {
		return daemonerrors.New(daemonerrors.CodeInternalError, "process not found", daemonerrors.CategoryCommand, daemonerrors.SeverityWarning).WithDetail(id)
	}
	if err := record.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	go func() {
		time.Sleep(forceKillGrace)
		e.mu.Lock()
		_, stillAlive := e.processes[id]
		e.mu.Unlock()
		if stillAlive {
			_ = record.cmd.Process.Kill()
		}
	}()
	return nil
}

// KillAllProcesses requests graceful termination of every live process
// concurrently and returns once every signal has been sent; it does not
// wait for the processes to exit (the forcible escalation KillProcess
// schedules runs in the background). It is invoked during shutdown.
func (e *Executor) KillAllProcesses(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.processes))
	for id := range e.processes {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return e.KillProcess(id)
		})
	}
	return g.Wait()
}

func (e *Executor) removeProcess(id string) {
	e.mu.Lock()
	delete(e.processes, id)
	e.mu.Unlock()
}

func (e *Executor) newProcessID() string {
	e.mu.Lock()
	n := e.rand.Int63()
	e.mu.Unlock()
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), n)
}
