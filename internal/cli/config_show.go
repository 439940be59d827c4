package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/cortex/internal/config"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/tui"
)

// ConfigPaths lists the files the configuration is read from.
type ConfigPaths struct {
	Global        string `json:"global" yaml:"global"`
	GlobalExists  bool   `json:"global_exists" yaml:"global_exists"`
	Project       string `json:"project" yaml:"project"`
	ProjectExists bool   `json:"project_exists" yaml:"project_exists"`
	Database      string `json:"database" yaml:"database"`
	Logs          string `json:"logs" yaml:"logs"`
}

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the effective CORTEX configuration after every layer is applied.

Layers, lowest precedence first:
  - built-in defaults
  - global: ~/.cortex/config.yaml
  - project: .cortex/config.yaml
  - env: CORTEX_* environment variables (CORTEX_SCHEDULER_BATCH_SIZE, ...)
  - flags: --occurrence, --db

Examples:
  cortex config show           # Display config as YAML
  cortex config show -o json   # Display config as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Display the configuration, database and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigPath(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.AddCommand(showCmd, pathCmd)
	parent.AddCommand(cmd)
}

func runConfigShow(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	cfg, err := loadConfig(ctx, flags, GetLogger())
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if out.IsJSON() {
		doc, err := configDocument(cfg)
		if err != nil {
			return err
		}
		return out.JSON(doc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return enc.Close()
}

// configDocument converts cfg to a generic document keyed by the yaml names,
// so JSON output uses the same keys and duration strings as the config file.
func configDocument(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return doc, nil
}

func runConfigPath(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	cfg, err := loadConfig(ctx, flags, GetLogger())
	if err != nil {
		return err
	}

	paths, err := configPaths(cfg)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if out.IsJSON() {
		return out.JSON(paths)
	}

	table := tui.NewTable(w, []string{"FILE", "PATH"})
	table.AddRow("Global config", existsLabel(paths.Global, paths.GlobalExists))
	table.AddRow("Project config", existsLabel(paths.Project, paths.ProjectExists))
	table.AddRow("Database", paths.Database)
	table.AddRow("Log file", paths.Logs)
	return table.Render()
}

func configPaths(cfg *config.Config) (ConfigPaths, error) {
	global, err := config.GlobalConfigPath()
	if err != nil {
		return ConfigPaths{}, err
	}
	db, err := config.DatabasePath(cfg)
	if err != nil {
		return ConfigPaths{}, err
	}
	logs, err := LogFilePath()
	if err != nil {
		return ConfigPaths{}, err
	}
	project := config.ProjectConfigPath()
	return ConfigPaths{
		Global:        global,
		GlobalExists:  fileExists(global),
		Project:       project,
		ProjectExists: fileExists(project),
		Database:      db,
		Logs:          logs,
	}, nil
}

func existsLabel(path string, exists bool) string {
	if exists {
		return path
	}
	return fmt.Sprintf("%s %s", path, tui.NewOutputStyles().Dim.Render("(not found)"))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
