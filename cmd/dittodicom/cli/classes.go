package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/marmos91/dittodicom/pkg/config"
	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/marmos91/dittodicom/pkg/sopclass"
	"github.com/spf13/cobra"
)

var classesCatalog bool

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Print the SOP classes each configured listener accepts",
	Long: `Print, for every configured listener, the SOP classes its class set
resolves to. With --catalog the whole built-in catalog is printed instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if classesCatalog {
			return printClasses(cmd, dicom.DefaultCatalog.All())
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		built, err := config.Build(cfg)
		if err != nil {
			return err
		}

		for _, lc := range built {
			resolved, err := sopclass.Resolve(lc.Classes.Patterns, dicom.DefaultCatalog)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", lc.AETitle, err)
			}
			resolved.Add(dicom.VerificationSOPClass)

			fmt.Fprintf(out, "%s (%s, %d classes)\n", lc.AETitle, lc.Classes.Name, resolved.Cardinality())
			if err := printClasses(cmd, sopclass.Sorted(resolved)); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func printClasses(cmd *cobra.Command, classes []dicom.SOPClass) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  UID\tNAME")
	for _, sc := range classes {
		fmt.Fprintf(w, "  %s\t%s\n", sc.UID, sc.Name)
	}
	return w.Flush()
}

func init() {
	classesCmd.Flags().BoolVar(&classesCatalog, "catalog", false, "print the built-in catalog instead of the configured listeners")
}
