package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rageval/src/infrastructure/log"
	"rageval/src/storage/postgres/questionctrl"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load benchmark questions into the question pool",
	Long: `The seed command reads a JSON file of labeled benchmark questions
([{"bucket": "...", "question": "...", "answer": "..."}]) and inserts them
into the benchmark question pool.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	settingDefaultConfig()
	seedCmd.Flags().StringP("input", "i", "", "Input JSON file path")
	seedCmd.MarkFlagRequired("input")
}

type seedRow struct {
	Bucket   string `json:"bucket"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %v", err)
	}

	var rows []seedRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse input file: %v", err)
	}

	db, err := openPostgres()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	questionService, err := questionctrl.NewQuestionService(db)
	if err != nil {
		return err
	}

	ctx := context.Background()
	inserted := 0
	skipped := 0
	for _, row := range rows {
		if row.Bucket == "" || row.Question == "" || row.Answer == "" {
			skipped++
			continue
		}
		if _, err := questionService.Create(ctx, row.Bucket, row.Question, row.Answer); err != nil {
			return fmt.Errorf("failed to insert question: %v", err)
		}
		inserted++
	}

	log.Info("Benchmark pool seeded", "inserted", inserted, "skipped", skipped)
	return nil
}
