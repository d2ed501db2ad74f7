package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
)

// checkReport is the JSON output of the check subcommand.
type checkReport struct {
	SQL            string   `json:"sql"`
	IsValid        bool     `json:"isValid"`
	Category       string   `json:"category"`
	Message        string   `json:"message,omitempty"`
	InvalidColumns []string `json:"invalidColumns,omitempty"`
	Rewritten      string   `json:"rewritten,omitempty"`
	AppliedPasses  []string `json:"appliedPasses,omitempty"`
}

// newCheckCmd creates the check subcommand.
func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [sql]",
		Short: "Validate and rewrite one SQL query against the schema catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlText := strings.Join(args, " ")
			ui := NewUI(outputJSON, noColor)

			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			report := runCheck(sqlText, catalog)

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(report)
			}

			if !report.IsValid {
				ui.Error("отхвърлена (%s): %s", report.Category, report.Message)
				os.Exit(1)
			}

			ui.Success("валидна заявка")
			if len(report.AppliedPasses) > 0 {
				ui.Info("пренаписвания: %s", strings.Join(report.AppliedPasses, ", "))
				ui.Info("резултат: %s", report.Rewritten)
			} else {
				ui.Info("без промени")
			}
			return nil
		},
	}
	return cmd
}

func runCheck(sqlText string, catalog *sqlguard.SchemaCatalog) checkReport {
	result := sqlguard.Validate(sqlText, catalog)

	report := checkReport{
		SQL:            sqlText,
		IsValid:        result.IsValid,
		Category:       string(result.Category),
		Message:        result.Message,
		InvalidColumns: result.InvalidColumns,
	}

	if result.IsValid {
		rewritten := sqlguard.Rewrite(sqlText, catalog)
		report.Rewritten = rewritten.SQL
		report.AppliedPasses = rewritten.AppliedPasses
	}

	return report
}

func loadCatalog() (*sqlguard.SchemaCatalog, error) {
	if cfg.Catalog.Path != "" {
		catalog, err := sqlguard.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return catalog, nil
	}
	return sqlguard.DefaultCatalog(), nil
}
