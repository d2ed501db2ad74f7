package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// auditSummary is the JSON output of the audit subcommand.
type auditSummary struct {
	Total    int           `json:"total"`
	Valid    int           `json:"valid"`
	Rejected int           `json:"rejected"`
	Reports  []checkReport `json:"reports"`
}

// newAuditCmd creates the audit subcommand.
func newAuditCmd() *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "audit [file]",
		Short: "Audit a batch file of SQL queries, one per line",
		Long: `Audit reads SQL queries from a file (one per line, blank lines and
lines starting with # are skipped), runs each through the validator and
rewriter, and prints a summary. Exits non-zero if any query is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(outputJSON, noColor)

			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			queries, err := readQueries(args[0])
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				ui.Warning("няма заявки в %s", args[0])
				return nil
			}

			var bar *progressbar.ProgressBar
			if !outputJSON {
				bar = progressbar.Default(int64(len(queries)), "проверка")
			}

			summary := auditSummary{Total: len(queries)}
			for _, q := range queries {
				report := runCheck(q, catalog)
				summary.Reports = append(summary.Reports, report)
				if report.IsValid {
					summary.Valid++
				} else {
					summary.Rejected++
				}
				if bar != nil {
					_ = bar.Add(1)
				}
				if failFast && !report.IsValid {
					break
				}
			}

			if outputJSON {
				if err := json.NewEncoder(os.Stdout).Encode(summary); err != nil {
					return err
				}
			} else {
				fmt.Println()
				for _, report := range summary.Reports {
					if !report.IsValid {
						ui.Error("%s: %s", report.Category, report.SQL)
					}
				}
				ui.Info("общо %d, валидни %d, отхвърлени %d", summary.Total, summary.Valid, summary.Rejected)
			}

			if summary.Rejected > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first rejected query")
	return cmd
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, scanner.Err()
}
