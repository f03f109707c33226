package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	web3notes "github.com/JPrieve/web3-notes"
)

var (
	verbose       bool
	configPath    string
	dbPath        string
	account       string
	identityFile  string
	confirmations uint64
	blockTime     time.Duration
	timeout       time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Client for the notes contract with confirmed-state caching",
	Long: `notesync submits note transactions, waits for their confirmation and
keeps cached read views in step with the ledger.

Without a remote ledger it runs a development ledger, persisted with --db.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&configPath, "config", "", "Config file (default: nearest "+web3notes.ConfigFile+")")
	flags.StringVar(&dbPath, "db", "", "SQLite file for the development ledger (default: in memory)")
	flags.StringVar(&account, "as", "", "Account address to act as")
	flags.StringVar(&identityFile, "identity-file", "", "File holding the account address; edits switch accounts")
	flags.Uint64Var(&confirmations, "confirmations", 0, "Blocks required to confirm a transaction")
	flags.DurationVar(&blockTime, "block-time", 0, "Produce a development block at this interval")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "How long a command waits for confirmation")
	rootCmd.MarkFlagsMutuallyExclusive("as", "identity-file")
}

// openClient builds a client from the config file and the flags, flags
// taking precedence.
func openClient(cmd *cobra.Command) (*web3notes.Client, error) {
	var opts []web3notes.Option

	path := configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := web3notes.FindConfig(wd)
		if err != nil && !errors.Is(err, web3notes.ErrConfigNotFound) {
			return nil, err
		}
		path = found
	}
	if path != "" {
		cfg, err := web3notes.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		slog.Debug("config loaded", "path", path)
		opts = append(opts, cfg.Options()...)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		opts = append(opts, web3notes.WithDatabase(dbPath))
	}
	if flags.Changed("as") {
		if !common.IsHexAddress(account) {
			return nil, fmt.Errorf("--as: %q is not an address", account)
		}
		opts = append(opts, web3notes.WithAccount(common.HexToAddress(account)))
	}
	if flags.Changed("identity-file") {
		opts = append(opts, web3notes.WithIdentityFile(identityFile))
	}
	if flags.Changed("confirmations") {
		opts = append(opts, web3notes.WithConfirmations(confirmations))
	}
	if flags.Changed("block-time") {
		opts = append(opts, web3notes.WithBlockTime(blockTime))
	}
	opts = append(opts, web3notes.WithLogger(slog.Default()))

	return web3notes.New(opts...)
}

// commandContext is cancelled on interrupt or after --timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
