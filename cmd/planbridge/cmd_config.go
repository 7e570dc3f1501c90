package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/planbridge/internal/config"
)

var revealSecrets bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	configCmd.PersistentFlags().BoolVar(&revealSecrets, "reveal", false, "print secret values unmasked")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: "Read and change the panel configuration by dot-separated key, e.g. llm.model or index.rescan_schedule.\n\n" +
		"Secret keys are masked unless --reveal is given: " + strings.Join(config.SecretKeys(), ", ") + ".",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.ListValues(loadConfig(), !revealSecrets)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		for _, k := range config.Keys(values) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, values[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		if config.IsSecretKey(args[0]) && !revealSecrets {
			val = config.MaskSecrets(map[string]any{args[0]: val})[args[0]]
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a value by key. The key must already exist; run `planbridge config list` for the known keys. Values that parse as JSON keep their type.",
	Example: `  planbridge config set llm.model gpt-4o
  planbridge config set panel.cancel_on_clear true
  planbridge config set index.rescan_schedule "@every 5m"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		known, err := config.ListValues(loadConfig(), false)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		if _, ok := known[key]; !ok {
			return fmt.Errorf("unknown config key: %s (see `planbridge config list`)", key)
		}
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			value = "***"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}
