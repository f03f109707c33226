package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDevRun reports whether the process was started by `go run` or `go test`.
// Both build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveDatabasePath returns where the ledger database should live.
// When sandboxed, paths outside the system temp directory are re-rooted
// under a namespaced temp directory, keeping only the base name.
func ResolveDatabasePath(path string, sandbox bool) string {
	if path == "" || !sandbox {
		return path
	}

	clean := filepath.Clean(path)
	rel, err := filepath.Rel(os.TempDir(), clean)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return clean
	}

	name := filepath.Base(clean)
	if name == "." || name == string(os.PathSeparator) {
		name = "notes.db"
	}
	return filepath.Join(os.TempDir(), "notesync-dev", name)
}
