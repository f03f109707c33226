package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDatabasePath(t *testing.T) {
	t.Parallel()

	devBase := filepath.Join(os.TempDir(), "notesync-dev")
	insideTemp := filepath.Join(os.TempDir(), "some-test", "notes.db")

	tests := []struct {
		name    string
		path    string
		sandbox bool
		want    string
	}{
		{name: "Memory", path: "", sandbox: true, want: ""},
		{name: "Normal Mode", path: "/var/lib/notes.db", sandbox: false, want: "/var/lib/notes.db"},
		{name: "Dev Mode - Relative Name", path: "notes.db", sandbox: true, want: filepath.Join(devBase, "notes.db")},
		{name: "Dev Mode - Clean Name", path: "../bad/ledger.db", sandbox: true, want: filepath.Join(devBase, "ledger.db")},
		{name: "Dev Mode - Exception for Temp Dir", path: insideTemp, sandbox: true, want: insideTemp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDatabasePath(tt.path, tt.sandbox))
		})
	}
}

func TestIsDevRun(t *testing.T) {
	assert.True(t, IsDevRun(), "test binaries always count as development runs")
}
