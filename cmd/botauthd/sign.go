package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdelaire/botauth/core/auth"
	"github.com/jdelaire/botauth/core/initdata"
	"github.com/jdelaire/botauth/core/policy"
	"github.com/jdelaire/botauth/internal/keychain"
)

func newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign key=value...",
		Short: "Build init data signed with a bot token (for testing clients)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenEnv, _ := cmd.Flags().GetString("token-env")
			account, _ := cmd.Flags().GetString("keychain")
			stamp, _ := cmd.Flags().GetBool("auth-date")

			token, err := signingToken(tokenEnv, account)
			if err != nil {
				return err
			}

			fields := make(map[string]string, len(args)+1)
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok || key == "" {
					return fmt.Errorf("field %q must be key=value", arg)
				}
				fields[key] = value
			}
			if stamp {
				fields[policy.AuthDateField] = strconv.FormatInt(time.Now().Unix(), 10)
			}

			out, err := signFields(token, fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().String("token-env", "", "Environment variable holding the bot token")
	cmd.Flags().String("keychain", "", "Keychain account holding the bot token")
	cmd.Flags().Bool("auth-date", false, "Add auth_date set to the current time")
	return cmd
}

func signingToken(tokenEnv, account string) (string, error) {
	switch {
	case tokenEnv != "" && account != "":
		return "", fmt.Errorf("use only one of --token-env and --keychain")
	case tokenEnv != "":
		token := os.Getenv(tokenEnv)
		if token == "" {
			return "", fmt.Errorf("environment variable %s is empty", tokenEnv)
		}
		return token, nil
	case account != "":
		return keychain.Get(account)
	default:
		return "", fmt.Errorf("one of --token-env or --keychain is required")
	}
}

// signFields encodes fields and signs them the way the bot would.
func signFields(token string, fields map[string]string) (string, error) {
	if _, ok := fields[initdata.HashField]; ok {
		return "", fmt.Errorf("field %q is computed and cannot be set", initdata.HashField)
	}
	unsigned, err := initdata.Parse(initdata.Encode(fields, ""))
	if err != nil {
		return "", err
	}
	return initdata.Encode(fields, auth.Sign(token, unsigned.CheckString())), nil
}
