package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	handler "rageval/handler/http"
	"rageval/src/core/evaluation"
	jobqueue "rageval/src/infrastructure/job"
	"rageval/src/infrastructure/log"
	"rageval/src/storage/postgres/jobctrl"
	"rageval/src/storage/postgres/questionctrl"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evaluation job API server",
	Long:  `The serve command starts the HTTP server that accepts evaluation job submissions and serves job status and results.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	settingDefaultConfig()
}

func runServe(cmd *cobra.Command, args []string) error {
	// Initialize PostgreSQL connection
	db, err := openPostgres()
	if err != nil {
		return err
	}

	// Get underlying *sql.DB for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
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

	// Initialize job and question pool services
	jobService, err := jobctrl.NewJobService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize job service: %v", err)
	}
	questionService, err := questionctrl.NewQuestionService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize question service: %v", err)
	}

	sampler := evaluation.NewSampler(questionService, log.WithName("sampler"))
	queueService := jobqueue.NewService(amqpPublisher, nil, watermill.NewStdLogger(false, false), 0)

	// Initialize HTTP handler
	h := handler.NewHandler(jobService, sampler, queueService, viper.GetInt("eval.dataset_size"))

	// Setup gin router
	r := gin.Default()
	h.RegisterRoutes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
		}
	}()
	log.Info("Evaluation API listening", "port", viper.GetString("server.port"))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Parse shutdown timeout
	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
	return nil
}

func openPostgres() (*gorm.DB, error) {
	host := viper.GetString("postgres.host")
	user := viper.GetString("postgres.user")
	password := viper.GetString("postgres.password")
	dbname := viper.GetString("postgres.db")
	port := viper.GetString("postgres.port")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	return db, nil
}
