package sandbox

import (
	"fmt"
	"os"
)

// RunProbeWorker is the subprocess entry point behind the hidden
// sandbox-probe CLI command. It imports the entry source, constructs the
// planner once, and exits: 0 on success, 1 with the failure on stderr
// otherwise. The parent converts a non-zero exit into a typed import error
// and a deadline kill into a timeout.
func RunProbeWorker(entryPath string) int {
	source, err := os.ReadFile(entryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read entry %s: %v\n", entryPath, err)
		return 1
	}

	if _, err := evalEntry(string(source)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	return 0
}
