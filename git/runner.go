package git

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// CommandRunner executes external commands.
type CommandRunner interface {
	// Run executes name with args in dir and returns trimmed combined output.
	Run(dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env is appended to the current process environment.
	Env []string
}

// NewExecRunner creates a runner that inherits the process environment.
func NewExecRunner(env ...string) *ExecRunner {
	return &ExecRunner{Env: env}
}

// Run executes the command and returns its combined output.
func (r *ExecRunner) Run(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err != nil {
		return output, &CommandError{
			Command: name,
			Args:    args,
			Output:  output,
			Err:     err,
		}
	}
	return output, nil
}

// CommandError describes a failed command.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "command failed"
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine renders the command for logs.
func (e *CommandError) CommandLine() string {
	return strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
}

// MockResponse is a canned command result.
type MockResponse struct {
	Stdout string
	Err    error
}

// MockCall records one invocation.
type MockCall struct {
	WorkDir string
	Command string
	Args    []string
}

// MockRunner answers commands from a response table keyed by command line.
type MockRunner struct {
	mu sync.Mutex

	Responses       map[string]MockResponse
	DefaultResponse MockResponse
	Calls           []MockCall
}

// NewMockRunner creates an empty mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// MockExpectation is returned by OnCommand to set a response.
type MockExpectation struct {
	runner *MockRunner
	key    string
}

// OnCommand registers a response for an exact command line.
func (m *MockRunner) OnCommand(name string, args ...string) *MockExpectation {
	return &MockExpectation{runner: m, key: commandKey(name, args)}
}

// OnAnyCommand registers a wildcard response.
func (m *MockRunner) OnAnyCommand() *MockExpectation {
	return &MockExpectation{runner: m, key: "*"}
}

// Return sets the response for the expectation.
func (e *MockExpectation) Return(stdout string, err error) {
	e.runner.mu.Lock()
	defer e.runner.mu.Unlock()
	e.runner.Responses[e.key] = MockResponse{Stdout: stdout, Err: err}
}

// Run looks up the exact command line, then the bare command, then the wildcard.
func (m *MockRunner) Run(dir, name string, args ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{WorkDir: dir, Command: name, Args: args})

	for _, key := range []string{commandKey(name, args), name, "*"} {
		if resp, ok := m.Responses[key]; ok {
			return resp.Stdout, resp.Err
		}
	}
	return m.DefaultResponse.Stdout, m.DefaultResponse.Err
}

// WasCalled reports whether a call started with name and args.
func (m *MockRunner) WasCalled(name string, args ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.Calls {
		if c.Command != name || len(c.Args) < len(args) {
			continue
		}
		if argsMatch(c.Args[:len(args)], args) {
			return true
		}
	}
	return false
}

// CallCount counts calls to name.
func (m *MockRunner) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c.Command == name {
			n++
		}
	}
	return n
}

// SequentialMockRunner returns queued responses in call order.
type SequentialMockRunner struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []MockCall
}

// NewSequentialMockRunner creates an empty sequential runner.
func NewSequentialMockRunner() *SequentialMockRunner {
	return &SequentialMockRunner{}
}

// AddOutput queues a response.
func (s *SequentialMockRunner) AddOutput(stdout string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, MockResponse{Stdout: stdout, Err: err})
}

// AddOutputError queues a failing response. errMsg is used when err is nil.
func (s *SequentialMockRunner) AddOutputError(stdout, errMsg string, err error) {
	if err == nil {
		err = errors.New(errMsg)
	}
	s.AddOutput(stdout, &CommandError{Command: "git", Output: stdout, Err: err})
}

// Run pops the next queued response.
func (s *SequentialMockRunner) Run(dir, name string, args ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, MockCall{WorkDir: dir, Command: name, Args: args})
	if len(s.responses) == 0 {
		return "", fmt.Errorf("unexpected command: %s", commandKey(name, args))
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp.Stdout, resp.Err
}

// Remaining returns the number of unconsumed responses.
func (s *SequentialMockRunner) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func commandKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func argsMatch(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}
