package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// InstallRequest is the argument list handed to the installer.
type InstallRequest struct {
	Payload       string // local path of the verified tarball
	SponsorRepo   string
	SponsorBranch string
	SponsorNumber int
	Uploader      string
}

// Args renders the request in installer argument order.
func (r InstallRequest) Args() []string {
	return []string{r.Payload, r.SponsorRepo, r.SponsorBranch, strconv.Itoa(r.SponsorNumber), r.Uploader}
}

// InstallResult is what the installer reported. ExitCode 0 is the only
// success; nothing else in the output is interpreted.
type InstallResult struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// OK reports whether the installation succeeded.
func (r *InstallResult) OK() bool {
	return r != nil && r.ExitCode == 0
}

// CommandLine joins the command for messages.
func (r *InstallResult) CommandLine() string {
	return strings.Join(r.Command, " ")
}

// Installer materializes a tarball into the distribution tree.
type Installer interface {
	// Install runs synchronously. A returned error means the outcome is
	// unknown (e.g. the context was cancelled); a failed installation is
	// reported through the result's exit code.
	Install(ctx context.Context, req InstallRequest) (*InstallResult, error)
}

// ExecInstaller runs the ingestion script as a child process.
type ExecInstaller struct {
	Script string
	// Wrapper is prepended to the command line, e.g. ["sudo"].
	Wrapper []string
}

// NewExecInstaller creates an installer for script. When asRoot is set the
// command is prefixed with wrapper (sudo when empty).
func NewExecInstaller(script string, asRoot bool, wrapper string) *ExecInstaller {
	inst := &ExecInstaller{Script: script}
	if asRoot {
		if wrapper == "" {
			wrapper = "sudo"
		}
		inst.Wrapper = strings.Fields(wrapper)
	}
	return inst
}

// Install implements Installer.
func (e *ExecInstaller) Install(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	argv := append(append(append([]string{}, e.Wrapper...), e.Script), req.Args()...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &InstallResult{
		Command:  argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		// The process never started.
		result.ExitCode = -1
		if result.Stderr != "" {
			result.Stderr += "\n"
		}
		result.Stderr += err.Error()
	}
	return result, nil
}
