package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glide-the/RAGFlowMCP/internal/config"
)

func newConfigCmd(g *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a " + config.DefaultConfigFile + " template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, g, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print effective config as YAML (secrets redacted)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Print even when validation would fail.
			cfg, err := loadConfig(g, nil, true)
			if err != nil {
				return err
			}
			data, err := config.MarshalSnapshot(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, printCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, g *GlobalFlags, force bool) error {
	out := cmd.OutOrStdout()
	if err := config.WriteTemplate(g.ConfigPath, force); err != nil {
		return withExit(ExitConfigInvalid, err)
	}
	if g.JSON {
		emitNDJSON(out, "config_written", map[string]any{"path": g.ConfigPath})
		return nil
	}
	fmt.Fprintln(out, "Wrote", g.ConfigPath)

	// Keys are never persisted; the template reads them from the environment.
	if g.NonInteractive || !IsTTY() {
		fmt.Fprintln(out, "Set RAGFLOW_API_KEY and VANNA_API_KEY in your environment or a .env file.")
		return nil
	}
	for _, name := range []string{"RAGFLOW_API_KEY", "VANNA_API_KEY"} {
		if os.Getenv(name) != "" {
			continue
		}
		key, err := ReadSecret(fmt.Sprintf("%s (input is hidden, Enter to skip): ", name))
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if key != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Key received (%s). Export it before running 'ragflowmcp serve':\n  export %s=<your-key>\n", config.MaskKey(key), name)
		}
	}
	return nil
}
