package process

import "errors"

// Sentinel errors returned by Runner.Run. Match with errors.Is.
var (
	// ErrInvalidScriptName is returned for empty names or names containing a path.
	ErrInvalidScriptName = errors.New("process: invalid script name")

	// ErrScriptNotFound is returned when the script does not exist in the folder.
	ErrScriptNotFound = errors.New("process: script not found")

	// ErrNotExecutable is returned when the script lacks execute permission.
	ErrNotExecutable = errors.New("process: script not executable")

	// ErrScriptFailed is returned when the script exits non-zero.
	ErrScriptFailed = errors.New("process: script failed")

	// ErrTimeout is returned when the script outlives the configured timeout.
	ErrTimeout = errors.New("process: script timed out")

	// ErrFolderUnavailable is returned by CheckFolder.
	ErrFolderUnavailable = errors.New("process: script folder unavailable")
)
