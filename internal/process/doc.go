// Package process runs bridge scripts as child processes.
//
// Scripts live in a single configured folder and are addressed by bare file
// name. A run:
//   - resolves and permission-checks the script inside the folder
//   - starts it in its own process group
//   - captures stdout (bounded) and logs stderr line by line
//   - terminates the group with SIGTERM then SIGKILL if it overruns
//
// Example usage:
//
//	runner := process.NewRunner(process.Config{Timeout: 10 * time.Second})
//	runner.SetLogger(logger)
//
//	out, err := runner.Run(ctx, "/etc/serialbridge/scripts", "reboot-router")
//	if errors.Is(err, process.ErrScriptNotFound) {
//	    // reply with an error frame
//	}
package process
