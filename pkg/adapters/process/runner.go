package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ErrNotRegistered is returned when a tool name is missing from the allow-list.
var ErrNotRegistered = errors.New("process tool not registered")

// Runner executes allow-listed local commands.
// Commands and their argument templates come only from the registry; per-call
// values fill placeholders and are exported as DIAGRAMFLOW_ARG_* variables.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ProcessConfig{
		Name:    name,
		Command: command,
		Args:    args,
	}
}

// Has reports whether name is registered.
func (r *Runner) Has(name string) bool {
	_, ok := r.registry[name]
	return ok
}

// Tools lists the registered tool names.
func (r *Runner) Tools() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecError reports a command that failed to run or exited non-zero.
type ExecError struct {
	Tool   string
	Err    error
	Stderr string
}

// Error prefers the tool's own diagnostics, which is what users need to fix their input.
func (e *ExecError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Run executes tool with vars and returns its stdout.
func (r *Runner) Run(ctx context.Context, tool string, vars map[string]string) ([]byte, error) {
	proc, ok := r.registry[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, tool)
	}

	pairs := make([]string, 0, len(vars)*2)
	env := make([]string, 0, len(vars)+len(proc.Environment))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
		env = append(env, fmt.Sprintf("DIAGRAMFLOW_ARG_%s=%s", strings.ToUpper(k), v))
	}
	for k, v := range proc.Environment {
		env = append(env, k+"="+v)
	}
	expand := strings.NewReplacer(pairs...)

	args := make([]string, len(proc.Args))
	for i, a := range proc.Args {
		args[i] = expand.Replace(a)
	}

	cmd := exec.CommandContext(ctx, proc.Command, args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ExecError{Tool: tool, Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}
