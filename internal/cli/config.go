package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect claimlens configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Long:  `Display the configuration after defaults, the config file, CLAIMLENS_* env vars and flags are applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(o.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", o.v.GetString("config"))
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}
