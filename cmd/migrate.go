package cmd

import (
	"fmt"
	"os"
	"reflect"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/kidoz/display-priority-manager/internal/config"
)

var migrateOutput string

var migrateCmd = &cobra.Command{
	Use:   "migrate-config <legacy.conf>",
	Short: "Convert a legacy INI config file to YAML",
	Long: `Read a legacy INI config file and print the equivalent YAML config.

Only values that differ from the defaults are written. Keys the INI
format supported but this version ignores are reported on stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, warnings, err := config.LoadINIWithWarnings(args[0])
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s\n", w)
		}
		if err := c.Validate(); err != nil {
			return &ExitError{Code: ExitConfigError, Err: fmt.Errorf("invalid configuration: %w", err)}
		}

		out, err := renderYAML(c)
		if err != nil {
			return err
		}

		if migrateOutput == "" {
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		if err := os.WriteFile(migrateOutput, out, 0o644); err != nil { //nolint:gosec // G306: config file is not secret
			return fmt.Errorf("failed to write %s: %w", migrateOutput, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", migrateOutput)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateOutput, "output", "o", "", "write YAML to this file instead of stdout")
	rootCmd.AddCommand(migrateCmd)
}

const migratedHeader = "# Display Priority Manager configuration (migrated from INI)\n"

// renderYAML writes the non-default values of c as YAML. Sections with no
// overrides are omitted.
func renderYAML(c *config.Config) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("no configuration to render")
	}

	defaults := config.DefaultConfig().Values()
	overrides := make(map[string]interface{})
	for key, val := range c.Values() {
		if !reflect.DeepEqual(val, defaults[key]) {
			overrides[key] = val
		}
	}
	if len(overrides) == 0 {
		return []byte(migratedHeader), nil
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	body, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, fmt.Errorf("failed to render YAML: %w", err)
	}
	return append([]byte(migratedHeader+"\n"), body...), nil
}
