package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/queue"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var submitCmd = &cobra.Command{
	Use:   "submit <payload.json>",
	Short: "Enqueue a fulfillment request from a payload file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		submit(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

// submit validates a request payload and places it on the durable queue. The
// request id doubles as the queue job id, so submitting the same payload
// twice is a no-op.
func submit(cmd *cobra.Command, path string) {
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

	payload, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading the payload file", zap.Error(err))
	}

	var req application.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Fatal("parsing the payload file", zap.Error(err))
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := req.Validate(); err != nil {
		logger.Fatal("validating the request", zap.Error(err))
	}

	encoded, err := req.Encode()
	if err != nil {
		logger.Fatal("encoding the request", zap.Error(err))
	}

	q, err := queue.Open(config.DatabasePath, queueConfig(config))
	if err != nil {
		logger.Fatal("opening the job queue", zap.Error(err))
	}
	defer q.Close()

	if err := q.Enqueue(cmd.Context(), req.ID, encoded); err != nil {
		logger.Fatal("enqueueing the request", zap.Error(err))
	}

	logger.Info("request enqueued",
		zap.String("request_id", req.ID),
		zap.Int("targets", len(req.Targets)),
	)

	fmt.Printf("request %s enqueued with %d target(s)\n", req.ID, len(req.Targets))
}
