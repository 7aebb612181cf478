package main

import (
	"os"

	"finpulse/pkg/core/ingest"
	"finpulse/pkg/models"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Preview how a CSV, XLSX or HTML statement maps onto the form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := ingest.Import(args[0], f)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Import ingest.Result        `json:"import"`
			Data   models.FinancialData `json:"data"`
		}{res, res.Patch.Apply(models.DefaultFinancialData())})
	},
}
