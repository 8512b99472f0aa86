package cli

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittodicom/pkg/config"
	"github.com/marmos91/dittodicom/pkg/listener"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the resolved listeners",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		built, err := config.Build(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration OK: %d listener(s)\n", len(built))
		for _, lc := range built {
			fmt.Fprintln(out, describeListener(lc))
		}
		return nil
	},
}

func describeListener(lc *listener.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s on port %d\n", lc.AETitle, lc.Port)
	fmt.Fprintf(&b, "    root:           %s (max %.2f%% used)\n", lc.Root, lc.MaxDiskUsagePercent)
	fmt.Fprintf(&b, "    strategy:       %s\n", lc.Strategy.Name)

	rules := "none"
	if lc.Rules != nil {
		rules = fmt.Sprintf("%s (%d rules)", lc.Rules.Name, len(lc.Rules.Rules))
	}
	fmt.Fprintf(&b, "    modality rules: %s\n", rules)

	classes := "none"
	if lc.Classes != nil {
		classes = fmt.Sprintf("%s %v", lc.Classes.Name, lc.Classes.Patterns)
	}
	fmt.Fprintf(&b, "    SOP classes:    %s", classes)
	return b.String()
}
