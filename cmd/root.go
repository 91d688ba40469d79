package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rageval",
	Short: "Evaluation service for third-party RAG backends",
	Long: `rageval benchmarks retrieval-augmented-generation backends: it samples a
stratified question set, queries the participant endpoint case by case,
scores the answers through the metrics engine and persists per-case and
aggregate results.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
