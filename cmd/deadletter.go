package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/queue"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptRequeue = "Requeue"
	PromptDiscard = "Discard"
	PromptBack    = "back"
)

var deadletterCmd = &cobra.Command{
	Use:   "deadletter",
	Short: "Review dead-lettered jobs and requeue or discard them",
	Run: func(cmd *cobra.Command, _ []string) {
		deadletter(cmd)
	},
}

func init() {
	rootCmd.AddCommand(deadletterCmd)
}

// deadletter is an interactive loop over jobs that exhausted their retries.
func deadletter(cmd *cobra.Command) {
	ctx := cmd.Context()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil || config.DatabasePath == "" {
		logger.Fatal("a database path is required",
			zap.String("hint", "set APPLYFLOW_DB environment variable or the 'database-path' key in the configuration file"),
		)
	}

	q, err := queue.Open(config.DatabasePath, queueConfig(config))
	if err != nil {
		logger.Fatal("opening the job queue", zap.Error(err))
	}
	defer q.Close()

	if err := reviewDeadLetters(ctx, q, logger); err != nil {
		logger.Fatal("reviewing dead-lettered jobs", zap.Error(err))
	}
}

func reviewDeadLetters(ctx context.Context, q *queue.Queue, logger *zap.Logger) error {
	for {
		jobs, err := q.DeadLettered(ctx)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("no dead-lettered jobs")
			return nil
		}

		items := make([]string, 0, len(jobs)+1)
		for _, job := range jobs {
			items = append(items, fmt.Sprintf("%s / attempts: %d / %s",
				job.ID, job.Attempts, job.LastError,
			))
		}

		jobPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(items, PromptBack),
		}

		_, jobSelected, err := jobPrompt.Run()
		if err != nil {
			return err
		}

		if jobSelected == PromptBack {
			return nil
		}

		jobID := strings.Split(jobSelected, " ")[0]

		actionPrompt := promptui.Select{
			Label: fmt.Sprintf("What to do with job %s?", jobID),
			Items: []string{PromptRequeue, PromptDiscard, PromptBack},
		}

		_, actionSelected, err := actionPrompt.Run()
		if err != nil {
			return err
		}

		switch actionSelected {
		case PromptRequeue:
			if err := q.Requeue(ctx, jobID); err != nil {
				return err
			}

			logger.Info("job requeued", zap.String("job", jobID))
		case PromptDiscard:
			if err := q.Discard(ctx, jobID); err != nil {
				return err
			}

			logger.Info("job discarded", zap.String("job", jobID))
		}
	}
}
