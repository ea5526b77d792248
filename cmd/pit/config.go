package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/config"
)

var (
	configListOutput string
	configShowAll    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write user settings",
	Long: `Manage settings in the user config file (` + "`pit config path`" + `).

Keys:
  defaults.agent              Agent used when --agent is not given
  defaults.base_ref           Ref new task branches start from
  linear.api_key              Linear API key (or LINEAR_API_KEY)
  github.token                GitHub token (or GITHUB_TOKEN)
  dashboard.refresh_interval  Dashboard poll interval, e.g. 2s
  telemetry.otlp_endpoint     OTLP/HTTP endpoint for traces
  telemetry.insecure          Send traces without TLS
  log.level                   debug, info, warn or error

Environment variables PIT_<KEY> (dots become underscores) override the file.

Examples:
  pit config set linear.api_key lin_api_xxx
  pit config get defaults.agent
  pit config list --all`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, ok, err := config.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not set\n", args[0])
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.Display(args[0], val))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value in the user config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(config.UserConfigPath(), args[0], args[1]); err != nil {
			return err
		}
		printOK("Set %s = %s", args[0], config.Display(args[0], args[1]))
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a value from the user config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Unset(config.UserConfigPath(), args[0]); err != nil {
			return err
		}
		printOK("Unset %s", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored settings (or every effective value with --all)",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.UserConfigPath())
	},
}

func init() {
	configListCmd.Flags().BoolVarP(&configShowAll, "all", "a", false, "Include defaults and environment overrides")
	configListCmd.Flags().StringVarP(&configListOutput, "output", "o", formatTable, "Output format: table, json or yaml")
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd, configListCmd, configPathCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	var (
		values map[string]string
		err    error
	)
	if configShowAll {
		values, err = config.Effective()
	} else {
		values, err = config.List(config.UserConfigPath())
	}
	if err != nil {
		return err
	}

	masked := make(map[string]string, len(values))
	for k, v := range values {
		masked[k] = config.Display(k, v)
	}

	w := cmd.OutOrStdout()
	if configListOutput != formatTable {
		return writeStructured(w, configListOutput, masked)
	}
	if len(masked) == 0 {
		fmt.Fprintf(w, "No settings in %s\n", config.UserConfigPath())
		return nil
	}
	keys := make([]string, 0, len(masked))
	for k := range masked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s = %s\n", k, masked[k])
	}
	return nil
}
