package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Config
		wantErr bool
	}{
		{
			name: "Full",
			yaml: `
db: notes.db
account: "0x00000000000000000000000000000000000a11ce"
confirmations: 3
poll_interval: 250ms
block_time: 1s
event_buffer: 8
`,
			want: Config{
				Database:      "notes.db",
				Account:       "0x00000000000000000000000000000000000a11ce",
				Confirmations: 3,
				PollInterval:  250 * time.Millisecond,
				BlockTime:     time.Second,
				EventBuffer:   8,
			},
		},
		{name: "Empty", yaml: "", want: Config{}},
		{name: "Unknown Field", yaml: "chain_id: 1\n", wantErr: true},
		{name: "Bad Account", yaml: "account: alice\n", wantErr: true},
		{
			name:    "Account And Identity File",
			yaml:    "account: \"0x00000000000000000000000000000000000a11ce\"\nidentity_file: account\n",
			wantErr: true,
		},
		{name: "Negative Block Time", yaml: "block_time: -1s\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("db: data/notes.db\nidentity_file: /etc/notesync/account\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "notes.db"), cfg.Database)
	assert.Equal(t, "/etc/notesync/account", cfg.IdentityFile)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Options(t *testing.T) {
	cfg := Config{
		Account:       "0x00000000000000000000000000000000000a11ce",
		Confirmations: 2,
		BlockTime:     time.Second,
	}
	o := defaultOptions()
	for _, opt := range cfg.Options() {
		opt(o)
	}
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000a11ce"), o.account)
	assert.Equal(t, uint64(2), o.confirmations)
	assert.Equal(t, time.Second, o.blockTime)
	assert.Zero(t, o.pollInterval, "zero fields keep the defaults")
	assert.Empty(t, o.database)
}
