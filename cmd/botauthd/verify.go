package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdelaire/botauth/core"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [init-data|-]",
		Short: "Print the name of the bot that signed the init data",
		Long: `verify checks init data in-process using the config file, or against a
running daemon when --socket is set. Pass "-" to read the init data from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArg(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			socket, _ := cmd.Flags().GetString("socket")
			if socket != "" {
				resp, err := core.NewClient(socket).Authenticate(raw)
				if err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("%s: %s", resp.Code, resp.Error)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Bot)
				return nil
			}

			configPath, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			_, resolver, _, err := setup(configPath, envFile)
			if err != nil {
				return err
			}

			bot, err := resolver.Authenticate(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", core.Classify(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), bot)
			return nil
		},
	}
	cmd.Flags().String("config", defaultConfigPath, "Bot configuration file")
	cmd.Flags().String("socket", "", "Ask a running daemon on this socket instead of loading the config")
	return cmd
}

// readArg returns arg, or the first line of in when arg is "-".
func readArg(arg string, in io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
