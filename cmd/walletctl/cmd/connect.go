package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/wallet"
)

var connectCmd = &cobra.Command{
	Use:   "connect <provider>",
	Short: "Connect a wallet provider",
	Long:  "Connect initiates pairing with one of: extension, relay, altrelay.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := domain.Provider(args[0])
		if !provider.Valid() {
			return fmt.Errorf("unknown provider %q", args[0])
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		accountID, err := runConnect(cmd.Context(), e.facade, provider)
		if err != nil {
			return err
		}

		fmt.Printf("Connected to %s as %s\n", provider, accountID)
		return nil
	},
}

// runConnect restores persisted state, then pairs with provider and returns
// the connected account id.
func runConnect(ctx context.Context, facade *wallet.Facade, provider domain.Provider) (string, error) {
	facade.Restore(ctx)

	result := facade.Connect(ctx, provider)
	if !result.Success {
		return "", fmt.Errorf("connect failed: %s", result.Error)
	}
	return result.AccountID, nil
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the active wallet provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		e.facade.Restore(cmd.Context())

		if !e.facade.Disconnect(cmd.Context()) {
			fmt.Println("No active connection")
			return nil
		}
		fmt.Println("Disconnected")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}
