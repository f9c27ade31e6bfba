package deployment

// CommandResult is the outcome of one remote command invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited cleanly.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// RemoteExecutor is the single channel through which the deployment manager
// touches the cluster: shell commands, file transfer and scheduler calls.
// Implementations block the calling goroutine and do not retry internally;
// retry and backoff policy belong to the manager. Transient channel failures
// are reported as *bencherrors.ErrConnectivity.
type RemoteExecutor interface {
	// Execute runs a shell command remotely. cwd may be empty for the
	// executor's default directory.
	Execute(command, cwd string) (CommandResult, error)

	// Upload copies a local file to the remote path, creating parent
	// directories as needed.
	Upload(localPath, remotePath string) error

	// Download copies a remote file to the local path.
	Download(remotePath, localPath string) error

	// SubmitJob submits a batch script already present on the remote side and
	// returns the scheduler's job handle.
	SubmitJob(scriptPath string) (string, error)

	// JobStatus returns the scheduler state for a job handle. ok is false
	// when the scheduler no longer knows the handle.
	JobStatus(jobID string) (JobState, bool, error)

	// CancelJob cancels a job. Cancelling an already-terminal job is not an
	// error.
	CancelJob(jobID string) error
}
