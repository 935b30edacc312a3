package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"learnplatform/config"
	"learnplatform/internal/app"
	handlers "learnplatform/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Stage)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Built once per container and reused across invocations.
	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}

	lambda.Start(handlers.NewLambdaAdapter(application.Router).Handle)
}
