package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rageval/src/core/evaluation"
)

// testrunCmd smoke-tests a participant endpoint without touching the
// database or the queue: it fires the dataset at the endpoint and reports
// how many cases came back with a usable answer.
var testrunCmd = &cobra.Command{
	Use:   "testrun",
	Short: "Query a participant endpoint over a local dataset file",
	RunE:  runTestrun,
}

func init() {
	rootCmd.AddCommand(testrunCmd)
	settingDefaultConfig()
	testrunCmd.Flags().StringP("endpoint", "e", "", "Participant endpoint URL")
	testrunCmd.MarkFlagRequired("endpoint")
	testrunCmd.Flags().StringP("input", "i", "", "Dataset JSON file path")
	testrunCmd.MarkFlagRequired("input")
	testrunCmd.Flags().IntP("top-k", "k", 5, "Retrieval depth hint sent to the endpoint")
}

func runTestrun(cmd *cobra.Command, args []string) error {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	inputPath, _ := cmd.Flags().GetString("input")
	topK, _ := cmd.Flags().GetInt("top-k")

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset file: %v", err)
	}
	pairs, err := evaluation.NormalizeDataset(data)
	if err != nil {
		return fmt.Errorf("failed to normalize dataset: %v", err)
	}
	if len(pairs) == 0 {
		return fmt.Errorf("dataset contains no usable question/answer pairs")
	}

	client := evaluation.NewHTTPBackendClient(&http.Client{}, viper.GetDuration("eval.query_timeout"))
	bar := progressbar.Default(int64(len(pairs)), "querying")

	ctx := context.Background()
	var answered, failed int
	errorCounts := make(map[string]int)

	for i, pair := range pairs {
		resp := client.Query(ctx, endpoint, pair.Question, topK)
		if resp.Err != nil {
			failed++
			errorCounts[*resp.Err]++
		} else {
			answered++
		}
		bar.Add(1)

		if i < len(pairs)-1 {
			time.Sleep(viper.GetDuration("eval.case_delay"))
		}
	}

	fmt.Printf("\n%d/%d cases answered\n", answered, len(pairs))
	for kind, count := range errorCounts {
		fmt.Printf("  %s: %d\n", kind, count)
	}
	if failed == len(pairs) {
		return fmt.Errorf("endpoint returned no usable answers")
	}
	return nil
}
