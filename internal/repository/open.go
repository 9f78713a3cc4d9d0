package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"townconnect-backend/internal/config"
)

// Open connects the backend selected by cfg.Store.Driver, running
// migrations or creating tables where the driver needs them.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	store := cfg.Store
	switch store.Driver {
	case config.DriverMemory:
		return NewMemoryBackend(), nil

	case config.DriverPostgres:
		if err := Migrate(store.Database.URL("pgx5"), "postgres"); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, store.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info().Str("host", store.Database.Host).Msg("Connected to database")
		return NewPostgresBackend(pool), nil

	case config.DriverSQLite:
		if err := Migrate("sqlite3://"+store.SQLite.Path, "sqlite"); err != nil {
			return nil, err
		}
		backend, err := OpenSQLite(store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", store.SQLite.Path).Msg("Opened sqlite database")
		return backend, nil

	case config.DriverDynamoDB:
		client, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend := NewDynamoBackend(client, store.DynamoDB.TablePrefix)
		if store.DynamoDB.CreateTables {
			if err := backend.EnsureTables(ctx); err != nil {
				return nil, err
			}
		}
		return backend, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(store.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		backend := NewMongoBackend(client, store.Mongo.Database)
		if err := backend.Ping(ctx); err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		if err := backend.EnsureIndexes(ctx); err != nil {
			backend.Close()
			return nil, err
		}
		return backend, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", store.Driver)
}

func newDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.AccessKey != "" && cfg.AWS.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKey, cfg.AWS.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.Store.DynamoDB.Endpoint
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
