package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rageval/src/core/evaluation"
	"rageval/src/infrastructure/integrations/ragas"
	jobqueue "rageval/src/infrastructure/job"
	"rageval/src/infrastructure/log"
	"rageval/src/storage/minioctrl"
	"rageval/src/storage/postgres/jobctrl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the evaluation job worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Initialize logger
	logger := watermill.NewStdLogger(false, false)

	// Initialize PostgreSQL connection
	db, err := openPostgres()
	if err != nil {
		return err
	}

	// Get underlying *sql.DB for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber. Evaluation jobs are not restartable, so a
	// nacked message must not be requeued.
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(
		subscriberConfig,
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	// Initialize router
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return err
	}

	// Add middleware. No Retry: a job that failed is terminal and a new
	// submission is the only retry path.
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
	)

	// Initialize job persistence
	jobService, err := jobctrl.NewJobService(db)
	if err != nil {
		return err
	}

	// Initialize report archive
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return err
	}

	// Initialize metrics engine client
	ragasClient := ragas.NewClient(viper.GetString("ragas.url"), &http.Client{})

	// Initialize participant backend client
	queryTimeout := viper.GetDuration("eval.query_timeout")
	backendClient := evaluation.NewHTTPBackendClient(&http.Client{}, queryTimeout)

	// Initialize orchestrator and queue service
	orchestrator := evaluation.NewOrchestrator(
		jobService,
		backendClient,
		ragasClient,
		minioService,
		viper.GetDuration("eval.case_delay"),
		log.WithName("orchestrator"),
	)
	queueService := jobqueue.NewService(amqpPublisher, orchestrator, logger, viper.GetDuration("eval.job_timeout"))

	// Add handler for processing evaluation jobs
	router.AddNoPublisherHandler(
		"evaluation_processor",
		jobqueue.TopicEvaluationJobs,
		amqpSubscriber,
		func(msg *message.Message) error {
			return queueService.ProcessMessage(msg)
		},
	)

	// Run the router
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error(err, "Router stopped unexpectedly")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info("Shutting down worker...")
	cancel()

	select {
	case <-router.Running():
	case <-time.After(10 * time.Second):
	}
	log.Info("Worker stopped")

	return nil
}
