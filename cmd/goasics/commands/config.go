package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/config"
)

// NewConfigCommand creates the config command with get/set/unset/list/paths subcommands
func NewConfigCommand(env *cli.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage goasics configuration",
		Long: `Gets, sets and removes values in goasics.config.

Keys:
  ` + strings.Join(config.ValidKeys(), "\n  ") + `

The TSA password is kept in the OS keychain when one is available.

Examples:
  goasics config set tsaUrl https://tsa.example/tsr
  goasics config set tsaPassword s3cret
  goasics config get digestAlgorithm
  goasics config list`,
	}

	cmd.AddCommand(
		newConfigGetCommand(env),
		newConfigSetCommand(env),
		newConfigUnsetCommand(env),
		newConfigListCommand(env),
		newConfigPathsCommand(env),
	)
	return cmd
}

func newConfigGetCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

func runConfigGet(env *cli.Env, key string) error {
	if !config.IsValidKey(key) {
		return fmt.Errorf("'%s' is not a valid config key", key)
	}
	value := env.Config.Get(key)
	if value == "" {
		return fmt.Errorf("key '%s' not found", key)
	}
	if key == config.KeyTSAPassword {
		value = maskSecret(value)
	}
	env.Console.Println(value)
	return nil
}

func newConfigSetCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

func runConfigSet(env *cli.Env, key, value string) error {
	if !config.IsValidKey(key) {
		return fmt.Errorf("'%s' is not a valid config key", key)
	}

	if key == config.KeyTSAPassword {
		stored, err := config.EncodePassword(env.Config.Get(config.KeyTSAURL), value)
		if err != nil {
			env.Console.Warning("%v", err)
		}
		value = stored
	}

	env.Config.Set(key, value)
	if _, err := env.Config.Resolve(); err != nil {
		return fmt.Errorf("refusing to write invalid configuration: %w", err)
	}
	if err := config.Save(env.ConfigPath, env.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	env.Console.Success("Updated %s in %s", key, env.ConfigPath)
	return nil
}

func newConfigUnsetCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigUnset(env, args[0])
		},
	}
}

func runConfigUnset(env *cli.Env, key string) error {
	if !config.IsValidKey(key) {
		return fmt.Errorf("'%s' is not a valid config key", key)
	}
	if key == config.KeyTSAPassword {
		if err := config.DeletePassword(env.Config.Get(config.KeyTSAURL)); err != nil {
			env.Console.Warning("%v", err)
		}
	}
	if !env.Config.Delete(key) {
		env.Console.Info("%s is not set", key)
		return nil
	}
	if err := config.Save(env.ConfigPath, env.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	env.Console.Success("Removed %s from %s", key, env.ConfigPath)
	return nil
}

func newConfigListCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

func runConfigList(env *cli.Env) error {
	items := env.Config.Items()
	if len(items) == 0 {
		env.Console.Info("No configuration values found.")
		return nil
	}
	rows := [][]string{{"Key", "Value"}}
	for _, item := range items {
		value := item.Value
		if item.Key == config.KeyTSAPassword {
			value = maskSecret(value)
		}
		rows = append(rows, []string{item.Key, value})
	}
	env.Console.Table(rows)
	env.Console.Detail("from %s", env.ConfigPath)
	return nil
}

func newConfigPathsCommand(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Display configuration file locations in search order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.Locations() {
				mark := " "
				if p == env.ConfigPath {
					mark = "*"
				}
				env.Console.Printf("%s %s\n", mark, p)
			}
			return nil
		},
	}
}

// maskSecret hides stored passwords unless they live in the keychain.
func maskSecret(v string) string {
	if strings.HasPrefix(v, "keychain:") {
		return v
	}
	return "********"
}
