// Package cmd contains all CLI commands for walletctl.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/kvstore"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet/altrelay"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet/extension"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet/relay"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
	"github.com/hashpoint/go-wallet-gateway/pkg/logging"
)

var (
	// Global flags
	configFile string
	stateDir   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "walletctl",
	Short: "Manage wallet connections",
	Long: `walletctl drives the wallet providers from the command line.
Connection state is persisted under the state directory, so an approved
pairing survives across invocations until an explicit disconnect.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "Directory for persisted connection state")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletctl"
	}
	return filepath.Join(home, ".walletctl")
}

// env assembles the façade and its providers from configuration plus the
// file-backed connection state.
type env struct {
	facade *wallet.Facade
	kv     kvstore.Store
	logger *zap.Logger
}

func newEnv() (*env, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := cfg.Logging
	if !verbose {
		logCfg.Level = "error"
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	kv, err := kvstore.NewFileStore(filepath.Join(stateDir, "connections.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection state: %w", err)
	}

	pairingTimeout := time.Duration(cfg.Wallet.PairingTimeout) * time.Second
	pollInterval := time.Duration(cfg.Wallet.PollInterval) * time.Millisecond
	printURI := relay.WithPairingURIHandler(func(uri string) {
		fmt.Println("Approve the pairing in your wallet:")
		fmt.Println(" ", uri)
	})

	providers := []wallet.Provider{
		extension.NewAdapter(cfg.Wallet.Extension, pollInterval, pairingTimeout,
			wallet.NewConnectionStore(domain.ProviderExtension, kv, logger), logger),
		relay.NewAdapter(relay.StandardDialect(), cfg.Wallet.Relay, pairingTimeout,
			wallet.NewConnectionStore(domain.ProviderRelay, kv, logger), logger, printURI),
		altrelay.New(cfg.Wallet.AltRelay, pairingTimeout,
			wallet.NewConnectionStore(domain.ProviderAltRelay, kv, logger), logger, printURI),
	}

	return &env{
		facade: wallet.NewFacade(logger, providers...),
		kv:     kv,
		logger: logger,
	}, nil
}

func (e *env) close() {
	_ = e.kv.Close()
	_ = e.logger.Sync()
}
