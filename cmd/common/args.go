package common

import "os"

// FileOrStdin opens the file at the given index for reading when the
// index is valid. Otherwise, it returns os.Stdin.
func FileOrStdin(args []string, idx int) *os.File {
	if len(args) > idx {
		input, err := os.Open(args[idx])
		ExitIfError("Cannot open file for reading", err)
		return input
	}

	return os.Stdin
}

// FileOrStdout opens the file at the given index for writing when the
// index is valid. Otherwise, it returns os.Stdout.
func FileOrStdout(args []string, idx int) *os.File {
	if len(args) > idx {
		output, err := os.Create(args[idx])
		ExitIfError("Cannot open file for writing", err)
		return output
	}

	return os.Stdout
}

// ArgOr returns the argument at the given index when it is present,
// otherwise it returns the fallback.
func ArgOr(args []string, idx int, fallback string) string {
	if len(args) > idx {
		return args[idx]
	}

	return fallback
}
