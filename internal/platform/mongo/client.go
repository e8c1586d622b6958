// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package mongo provides a managed MongoDB client for the document-backed
// credential store.
//
// # Architecture
//
// This package mirrors [postgres]: it owns connection setup and health
// checks, while the repository that reads and writes user documents lives
// with the auth domain.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/taibuivan/reactforge-auth/internal/platform/constants"
)

// Client settings for the credential store workload.
const (
	maxPoolSize            = 20
	minPoolSize            = 2
	connectTimeout         = 5 * time.Second
	serverSelectionTimeout = 5 * time.Second
	pingTimeout            = 2 * time.Second
)

// NewDatabase connects to MongoDB and returns a handle on the named database.
//
// # Parameters
//   - ctx: Context for the initial ping.
//   - uri: A mongodb:// or mongodb+srv:// connection string.
//   - database: Name of the database holding the users collection.
//   - logger: Structured logger for connection events.
func NewDatabase(ctx context.Context, uri, database string, logger *slog.Logger) (*mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName(constants.AppName).
		SetMaxPoolSize(maxPoolSize).
		SetMinPoolSize(minPoolSize).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to create client: %w", err)
	}

	// Validate connectivity immediately at startup.
	if err := Ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("mongo_client_connected",
		slog.String("database", database),
		slog.Int("max_pool_size", maxPoolSize),
	)

	return client.Database(database), nil
}

// Ping verifies that the primary is reachable.
func Ping(ctx context.Context, client *mongo.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping failed: %w", err)
	}

	return nil
}
