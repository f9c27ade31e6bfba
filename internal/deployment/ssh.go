package deployment

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/bencherrors"
)

// sshExitConnectionFailed is the exit code the ssh and scp binaries reserve
// for transport-level failures, as opposed to the remote command's own exit
// code.
const sshExitConnectionFailed = 255

// commandRunner executes a local binary and returns its output and exit code.
// err is non-nil only when the binary could not be started at all.
type commandRunner func(name string, args ...string) (stdout, stderr string, exitCode int, err error)

func runLocal(name string, args ...string) (string, string, int, error) {
	cmd := exec.Command(name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return out.String(), errOut.String(), -1, errors.WithStack(err)
		}
		exitCode = exitErr.ExitCode()
	}
	return out.String(), errOut.String(), exitCode, nil
}

// SshExecutor talks to a cluster login node through the local ssh and scp
// binaries, so SSH aliases, keys and proxy jumps configured in ~/.ssh/config
// all work without any configuration here. Transport failures are reported as
// *bencherrors.ErrConnectivity; remote command failures come back through
// CommandResult.
type SshExecutor struct {
	target string
	run    commandRunner
	log    *log.Entry
}

// NewSshExecutor returns an executor for the given SSH target (an alias or
// hostname resolvable by the local ssh client).
func NewSshExecutor(target string) (*SshExecutor, error) {
	if target == "" {
		return nil, errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "target",
			Value:   target,
			Message: "ssh target must be non-empty",
		})
	}
	return &SshExecutor{
		target: target,
		run:    runLocal,
		log:    log.WithField("target", target),
	}, nil
}

func (e *SshExecutor) connectivityError(operation, detail string) error {
	return errors.WithStack(&bencherrors.ErrConnectivity{
		Operation: operation,
		Message:   strings.TrimSpace(detail),
	})
}

func (e *SshExecutor) Execute(command, cwd string) (CommandResult, error) {
	if cwd != "" {
		command = fmt.Sprintf("cd %s && %s", cwd, command)
	}
	stdout, stderr, exitCode, err := e.run("ssh", e.target, command)
	if err != nil {
		return CommandResult{}, e.connectivityError("execute", err.Error())
	}
	if exitCode == sshExitConnectionFailed {
		return CommandResult{}, e.connectivityError("execute", stderr)
	}
	return CommandResult{
		Stdout:   strings.TrimSpace(stdout),
		Stderr:   strings.TrimSpace(stderr),
		ExitCode: exitCode,
	}, nil
}

// Upload copies through a temp path and renames, so a remote reader polling
// for the file never observes a partial copy.
func (e *SshExecutor) Upload(localPath, remotePath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return errors.Wrapf(err, "cannot upload %s", localPath)
	}
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if _, err := e.Execute(fmt.Sprintf("mkdir -p %s", dir), ""); err != nil {
			return err
		}
	}
	stagingPath := fmt.Sprintf("%s.upload-%s", remotePath, uuid.NewString())
	_, stderr, exitCode, err := e.run("scp", "-q", localPath, fmt.Sprintf("%s:%s", e.target, stagingPath))
	if err != nil {
		return e.connectivityError("upload", err.Error())
	}
	if exitCode != 0 {
		return e.connectivityError("upload", stderr)
	}
	result, err := e.Execute(fmt.Sprintf("mv %s %s", stagingPath, remotePath), "")
	if err != nil {
		return err
	}
	if !result.Success() {
		return errors.Errorf("renaming uploaded file to %s failed: %s", remotePath, result.Stderr)
	}
	return nil
}

func (e *SshExecutor) Download(remotePath, localPath string) error {
	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WithStack(err)
		}
	}
	_, stderr, exitCode, err := e.run("scp", "-q", fmt.Sprintf("%s:%s", e.target, remotePath), localPath)
	if err != nil {
		return e.connectivityError("download", err.Error())
	}
	if exitCode == sshExitConnectionFailed {
		return e.connectivityError("download", stderr)
	}
	if exitCode != 0 {
		return errors.Errorf("downloading %s failed: %s", remotePath, strings.TrimSpace(stderr))
	}
	return nil
}

func (e *SshExecutor) SubmitJob(scriptPath string) (string, error) {
	result, err := e.Execute(fmt.Sprintf("sbatch %s", scriptPath), "")
	if err != nil {
		return "", err
	}
	if !result.Success() {
		return "", errors.Errorf("sbatch %s failed: %s", scriptPath, result.Stderr)
	}
	// sbatch prints "Submitted batch job <id>"; the id is the last field.
	fields := strings.Fields(result.Stdout)
	if len(fields) == 0 || !isDigits(fields[len(fields)-1]) {
		return "", errors.Errorf("unexpected sbatch output: %q", result.Stdout)
	}
	jobID := fields[len(fields)-1]
	e.log.WithField("jobId", jobID).Infof("submitted %s", scriptPath)
	return jobID, nil
}

// JobStatus asks squeue first; once the job has left the queue it falls back
// to the accounting database via sacct.
func (e *SshExecutor) JobStatus(jobID string) (JobState, bool, error) {
	result, err := e.Execute(fmt.Sprintf("squeue -j %s -h -o %%T", jobID), "")
	if err != nil {
		return StateUnknown, false, err
	}
	if result.Success() && result.Stdout != "" {
		return parseSlurmState(firstLine(result.Stdout)), true, nil
	}

	result, err = e.Execute(fmt.Sprintf("sacct -j %s -n -o State --parsable2", jobID), "")
	if err != nil {
		return StateUnknown, false, err
	}
	if result.Success() && result.Stdout != "" {
		// The first row is the job itself; later rows are its steps.
		return parseSlurmState(firstLine(result.Stdout)), true, nil
	}
	return StateUnknown, false, nil
}

func (e *SshExecutor) CancelJob(jobID string) error {
	result, err := e.Execute(fmt.Sprintf("scancel %s", jobID), "")
	if err != nil {
		return err
	}
	if !result.Success() {
		return errors.Errorf("scancel %s failed: %s", jobID, result.Stderr)
	}
	return nil
}

// parseSlurmState maps a Slurm state string onto the job lifecycle. Slurm
// reports "CANCELLED by <uid>" from sacct, hence the prefix match.
func parseSlurmState(s string) JobState {
	state := strings.ToUpper(strings.TrimSpace(s))
	if idx := strings.IndexByte(state, ' '); idx >= 0 {
		state = state[:idx]
	}
	switch state {
	case "PENDING", "CONFIGURING", "REQUEUED", "SUSPENDED":
		return StatePending
	case "RUNNING", "COMPLETING":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "FAILED", "NODE_FAIL", "BOOT_FAIL", "OUT_OF_MEMORY", "PREEMPTED":
		return StateFailed
	case "CANCELLED":
		return StateCancelled
	case "TIMEOUT", "DEADLINE":
		return StateTimeout
	}
	return StateUnknown
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
