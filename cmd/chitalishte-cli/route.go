package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chitalishte-ai/query-engine/internal/llm"
	"github.com/chitalishte-ai/query-engine/internal/routing"
)

// newRouteCmd creates the route subcommand.
func newRouteCmd() *cobra.Command {
	var rulesOnly bool

	cmd := &cobra.Command{
		Use:   "route [question]",
		Short: "Classify a question into sql, rag, or hybrid intent",
		Long: `Route runs the hybrid intent router on a question and prints the
decision. With --rules-only (or without an API key) only the keyword
classifier contributes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			question := strings.Join(args, " ")
			ui := NewUI(outputJSON, noColor)

			model, err := buildModelClassifier(rulesOnly, ui)
			if err != nil {
				return err
			}

			router := routing.NewHybridRouter(logger, routing.NewKeywordIntentClassifier(), model)

			stop := ui.Spinner("класифициране на въпроса...")
			decision, err := router.Route(ctx, question)
			stop()
			if err != nil {
				return fmt.Errorf("route question: %w", err)
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(decision)
			}

			ui.Success("интент: %s (увереност %.2f)", decision.Intent, decision.Confidence)
			ui.Info("обяснение: %s", decision.Explanation)
			if len(decision.MatchedSignals) > 0 {
				ui.Info("сигнали: %s", strings.Join(decision.MatchedSignals, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rulesOnly, "rules-only", false, "skip the model classifier")
	return cmd
}

func buildModelClassifier(rulesOnly bool, ui *UI) (routing.Classifier, error) {
	if rulesOnly {
		return routing.NewDegradedClassifier(), nil
	}

	client, err := llm.NewClient(llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		ClassifierModel: cfg.LLM.ClassifierModel,
		SQLModel:        cfg.LLM.SQLModel,
		Timeout:         cfg.LLM.Timeout,
	}, logger)
	if errors.Is(err, llm.ErrNoAPIKey) {
		ui.Warning("няма API ключ, само правила")
		return routing.NewDegradedClassifier(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return llm.NewIntentClassifier(client), nil
}
