package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdelaire/botauth/internal/keychain"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bot tokens stored in the system keychain",
	}

	set := &cobra.Command{
		Use:   "set <account>",
		Short: "Read a bot token from stdin and store it under account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readArg("-", cmd.InOrStdin())
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("empty token on stdin")
			}
			if err := keychain.Set(args[0], token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored token for %s\n", args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <account>",
		Short: "Remove a stored bot token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keychain.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted token for %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
