package process

const (
	// posixShellInvalidCommandExitCode is the exit code returned by most POSIX
	// shells when the provided command is invalid, e.g. due to a file without
	// executable permissions.
	posixShellInvalidCommandExitCode = 126

	// posixShellCommandNotFoundExitCode is the exit code returned by most
	// POSIX shells when the provided command isn't found.
	posixShellCommandNotFoundExitCode = 127
)

// IsPOSIXShellInvalidCommand returns whether or not a status represents an
// "invalid" error from a POSIX shell.
func IsPOSIXShellInvalidCommand(status Status) bool {
	return status.Signal == "" && status.Code == posixShellInvalidCommandExitCode
}

// IsPOSIXShellCommandNotFound returns whether or not a status represents a
// "command not found" error from a POSIX shell.
func IsPOSIXShellCommandNotFound(status Status) bool {
	return status.Signal == "" && status.Code == posixShellCommandNotFoundExitCode
}
