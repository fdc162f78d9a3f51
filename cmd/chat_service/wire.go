package main

import (
	"context"
	"fmt"
	"time"

	"social_chat_service/internal/chat/app"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/config"
	"social_chat_service/pkg/database"
	"social_chat_service/pkg/logger"

	"go.uber.org/zap"
)

func retryInterval(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func connectMongo(ctx context.Context, d config.DatabaseConfig) *database.MongoDB {
	mongo, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    database.MongoURI(d.Host, d.Port, d.User, d.Password),
		RetryCount:    d.RetryCount,
		RetryInterval: retryInterval(d.RetryInterval),
	}, d.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", d.Host, d.Port)),
			zap.Error(err),
		)
	}
	return mongo
}

func postgresConnection(d config.DatabaseConfig) database.Connection {
	return database.Connection{
		ConnectStr:    database.PostgresDSN(d.Host, d.Port, d.User, d.Password, d.Database),
		RetryCount:    d.RetryCount,
		RetryInterval: retryInterval(d.RetryInterval),
	}
}

func newMessageRepository(ctx context.Context, cfg config.Chat) (repository.MessageRepository, func()) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Log.Warn("memory store selected, messages are lost on restart")
		return repository.NewMemoryMessageRepository(), func() {}

	case config.StorePostgres:
		db, err := database.NewPGConnection(postgresConnection(cfg.PostgreSQL))
		if err != nil {
			logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
		}
		if err := repository.AutoMigrateMessages(db); err != nil {
			logger.Log.Fatal("migrate messages", zap.Error(err))
		}
		return repository.NewGormMessageRepository(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}

	default:
		mongo := connectMongo(ctx, cfg.MongoSQL)
		if err := repository.EnsureMessageIndexes(ctx, mongo.Database); err != nil {
			logger.Log.Warn("ensure message indexes", zap.Error(err))
		}
		return repository.NewMongoMessageRepository(mongo.Database), func() { mongo.Close(context.Background()) }
	}
}

func newIdentityRepository(cfg config.Chat) (repository.IdentityRepository, func()) {
	if cfg.PostgreSQL.Host == "" {
		logger.Log.Warn("identity store not configured, display names fall back to Unknown")
		return repository.NewStaticIdentityRepository(), func() {}
	}
	pool, err := database.NewDatabaseConnection(postgresConnection(cfg.PostgreSQL))
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL identity store", zap.Error(err))
	}
	return repository.NewPostgresIdentityRepository(pool), pool.Close
}

func newAttachmentRepository(cfg config.Chat) repository.AttachmentRepository {
	if cfg.MinIO.Host == "" {
		return nil
	}
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.BucketName,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: cfg.MinIO.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minio after retries", zap.Error(err))
	}
	return repository.NewMinIOAttachmentRepository(minioClient)
}

// newPresence redis 設定存在時啟用跨節點 presence 與轉送
func newPresence(ctx context.Context, cfg config.Chat, pusher *app.Pusher) (repository.PresenceRepository, func()) {
	masterName, sentinels := config.GetRedisSetting()
	if cfg.Redis.Addr == "" && len(sentinels) == 0 {
		logger.Log.Info("redis not configured, presence is process local")
		return nil, func() {}
	}

	client, err := database.NewRedisClient(database.RedisOptions{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		MasterName:    masterName,
		SentinelAddrs: sentinels,
		DB:            cfg.Redis.RedisDB,
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	directory := repository.NewRedisPresenceRepository(database.NewRedisRepository[repository.PresenceEntry](client))
	pubsub := repository.NewRedisPubSub(client)
	pusher.WithRelay(pubsub, directory, cfg.InstanceID)

	if err := pubsub.SubscribeUsers(ctx, pusher.DeliverRelayed); err != nil {
		logger.Log.Fatal("subscribe relay channel", zap.Error(err))
	}
	return directory, func() { client.Close() }
}

func newNotifier(ctx context.Context, cfg config.Chat) (repository.Notifier, func()) {
	switch cfg.Notify.Driver {
	case config.NotifyRabbitMQ:
		rabbitURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port)
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    rabbitURL,
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: cfg.RabbitMQ.RetryInterval,
		})
		if err != nil {
			logger.Log.Fatal("RabbitMQ 連線失敗", zap.Error(err))
		}
		publishCh, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
		if err != nil {
			logger.Log.Fatal("取得 RabbitMQ Channel 失敗", zap.Error(err))
		}
		if err := database.DeclareDurableQueue(publishCh, cfg.Notify.Queue); err != nil {
			logger.Log.Fatal("declare notification queue", zap.Error(err))
		}

		// consumer 使用獨立 channel, 寫入 mongo notifications
		consumeCh, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
		if err != nil {
			logger.Log.Fatal("取得 RabbitMQ Channel 失敗", zap.Error(err))
		}
		mongo := connectMongo(ctx, cfg.MongoSQL)
		consumer := app.NewNotificationConsumer(consumeCh, repository.NewMongoNotificationRepository(mongo.Database), cfg.Notify.Queue, 5*time.Second)
		go func() {
			if err := consumer.StartConsumer(ctx); err != nil {
				logger.Log.Error("notification consumer", zap.Error(err))
			}
		}()

		return repository.NewRabbitNotifier(database.NewRabbitRepository(publishCh), cfg.Notify.Queue), func() {
			publishCh.Close()
			consumeCh.Close()
			conn.Close()
			mongo.Close(context.Background())
		}

	case config.NotifyKafka:
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: cfg.Kafka.RetryInterval,
		})
		if err != nil {
			logger.Log.Fatal("kafka writer", zap.Error(err))
		}
		return repository.NewKafkaNotifier(writer), func() { writer.Close() }

	default:
		return repository.NewNopNotifier(), func() {}
	}
}
