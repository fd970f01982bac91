package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet connection state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		e.facade.Restore(cmd.Context())

		state := e.facade.State()
		if !state.Connected {
			fmt.Println("Not connected")
			return nil
		}
		fmt.Printf("Connected as %s\n", state.AccountID)
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign <payload-file>",
	Short: "Submit a payload for wallet signing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		e.facade.Restore(cmd.Context())

		txID, err := e.facade.SignAndSubmit(cmd.Context(), payload)
		if err != nil {
			return fmt.Errorf("sign failed: %w", err)
		}
		fmt.Printf("Submitted: %s\n", txID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(signCmd)
}
