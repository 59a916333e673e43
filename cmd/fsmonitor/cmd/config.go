package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fsmonitor/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage fsmonitor configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/fsmonitor/config.yaml)
  3. Project config (.fsmonitor.yaml in the watched directory)
  4. Environment variables (FSMONITOR_*)
  5. Flags`,
		Example: `  # Create the user config with defaults
  fsmonitor config init

  # Show the effective configuration for a directory
  fsmonitor config show ./assets

  # Print the user config file path
  fsmonitor config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	var project string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Long: `Write the default configuration to the user config file, or with
--project to .fsmonitor.yaml in the given directory.

An existing file is left alone unless --force is given, in which case it is
backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project != "" {
				path = filepath.Join(project, ".fsmonitor.yaml")
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().StringVar(&project, "project", "", "Write .fsmonitor.yaml in this directory instead")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil {
		if !force {
			fmt.Fprintf(out, "Configuration already exists: %s\n", path)
			fmt.Fprintln(out, "Use --force to overwrite it (a backup is kept)")
			return nil
		}
		backup, err := config.Backup(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		fmt.Fprintf(out, "Backup: %s\n", backup)
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Created configuration: %s\n", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "Show effective configuration",
		Long: `Show the configuration that 'fsmonitor watch' would use for dir
(default: the current directory), after merging every source.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runConfigShow(cmd, dir, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runConfigShow(cmd *cobra.Command, dir string, jsonOutput bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	if len(cfg.Sources) == 0 {
		fmt.Fprintln(out, "# sources: defaults")
	}
	for _, src := range cfg.Sources {
		fmt.Fprintf(out, "# source: %s\n", src)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Long:  `Print the path to the user configuration file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}
