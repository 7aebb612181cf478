package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"finpulse/pkg/core/ingest"
	"finpulse/pkg/core/logging"
	"finpulse/pkg/models"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	input    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "finpulse",
	Short: "SME financial assessment from the command line",
	Long: `Run the assessment pipeline, compute local metrics or preview a
statement import without starting the API server.

Input files may be JSON (a FinancialData object) or a CSV, XLSX or HTML
statement, which is mapped onto the default form.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Configure(logLevel, os.Stderr)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(importCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readFinancialData loads a snapshot from JSON or, for statement files, from
// the import mapping applied over the defaults.
func readFinancialData(path string) (models.FinancialData, error) {
	if path == "" {
		return models.FinancialData{}, fmt.Errorf("--input is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return models.FinancialData{}, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data := models.DefaultFinancialData()
		if err := json.NewDecoder(f).Decode(&data); err != nil {
			return models.FinancialData{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return data, nil
	}

	res, err := ingest.Import(path, f)
	if err != nil {
		return models.FinancialData{}, err
	}
	return res.Patch.Apply(models.DefaultFinancialData()), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
