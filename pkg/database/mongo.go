package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"social_chat_service/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const mongoAttemptTimeout = 5 * time.Second

// MongoURI build a mongodb:// uri, credentials are optional
func MongoURI(host string, port int, user, password string) string {
	u := url.URL{Scheme: "mongodb", Host: fmt.Sprintf("%s:%d", host, port)}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

// NewMongoDB connect and ping with retry, each attempt bounded by mongoAttemptTimeout
func NewMongoDB(ctx context.Context, c Connection, dbName string) (*MongoDB, error) {
	clientOpts := options.Client().
		ApplyURI(c.ConnectStr).
		SetServerSelectionTimeout(mongoAttemptTimeout)

	var lastErr error
	for i := 0; i <= c.RetryCount; i++ {
		client, err := connectMongoOnce(ctx, clientOpts)
		if err == nil {
			return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
		}
		lastErr = err

		logger.Log.Warn("Failed to connect to mongoDB, retrying...", zap.Int("attempt", i+1), zap.Error(err))
		if i == c.RetryCount {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect mongoDB: %w", ctx.Err())
		case <-time.After(c.RetryInterval):
		}
	}

	return nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", c.RetryCount+1, lastErr)
}

func connectMongoOnce(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, mongoAttemptTimeout)
	defer cancel()

	client, err := mongo.Connect(attemptCtx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(attemptCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Close disconnect mongoDB connection, bounded so shutdown never hangs
func (m *MongoDB) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoAttemptTimeout)
	defer cancel()
	return m.Client.Disconnect(ctx)
}
