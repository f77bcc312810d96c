package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(o *rootOptions) *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "analyze [text|-]",
		Short: "Analyze one claim description",
		Long: `Analyze one claim description and print the result as JSON.

The text is taken from the arguments; with no arguments or "-" it is read from stdin.

Example:
  claimlens analyze "Rear-ended at a light in Denver, bumper crushed."
  cat claim.txt | claimlens analyze -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := claimText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), o.cfg, o.version)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.analyzer.Analyze(cmd.Context(), text)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print single-line JSON")
	return cmd
}

func claimText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	return strings.Join(args, " "), nil
}
