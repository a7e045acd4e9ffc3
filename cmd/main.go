package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"handoff-router/handler"
	"handoff-router/internal/integrations/paramstore"
	"handoff-router/internal/routing"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tableName := os.Getenv("ROUTING_TABLE")
	paramPrefix := os.Getenv("PARAM_PREFIX")
	partitionPrefix := os.Getenv("ROUTING_PARTITION_PREFIX")
	if tableName == "" && paramPrefix == "" {
		slog.Error("either ROUTING_TABLE or PARAM_PREFIX must be set")
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	if tableName == "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		tableName, err = paramstore.ResolveTableName(ctx, ssmClient, paramPrefix)
		if err != nil {
			slog.Error("failed to resolve routing table name", "err", err)
			os.Exit(1)
		}
	}

	var opts []routing.Option
	if partitionPrefix != "" {
		opts = append(opts, routing.WithPartitionPrefix(partitionPrefix))
	}
	store, err := routing.NewStore(awsdynamodb.NewFromConfig(cfg), tableName, opts...)
	if err != nil {
		slog.Error("failed to create routing store", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(store)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
