package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port       string `mapstructure:"port"`
	GRPCPort   string `mapstructure:"grpc_port"`
	InstanceID string `mapstructure:"instance_id"`
	JWTSecret  string `mapstructure:"jwt_secret"`

	Store    StoreConfig    `mapstructure:"store"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Delivery DeliveryConfig `mapstructure:"delivery"`

	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	MinIO      MinIOConfig    `mapstructure:"minio"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`
}

// StoreConfig select the conversation store backend: mongo | postgres | memory
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// NotifyConfig select the message notification backend: rabbitmq | kafka | none
type NotifyConfig struct {
	Driver string `mapstructure:"driver"`
	Queue  string `mapstructure:"queue"`
}

// DeliveryConfig realtime push tuning
type DeliveryConfig struct {
	PushTimeout  time.Duration `mapstructure:"push_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	PresenceTTL  time.Duration `mapstructure:"presence_ttl"`
	LegacyRelay  bool          `mapstructure:"legacy_relay"`
	LookupLimit  int           `mapstructure:"lookup_limit"`
}

// RedisConfig definition redis setting
// Addr 有值時使用單機連線, 否則使用 .env 的 sentinel 設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	RedisDB  int    `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	BucketName    string        `mapstructure:"bucket_name"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// RabbitMQConfig definition rabbitmq setting
type RabbitMQConfig struct {
	IP            string        `mapstructure:"ip"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

const (
	// StoreMongo mongo conversation store
	StoreMongo = "mongo"
	// StorePostgres postgres (gorm) conversation store
	StorePostgres = "postgres"
	// StoreMemory process local conversation store
	StoreMemory = "memory"

	// NotifyRabbitMQ publish notifications to rabbitmq
	NotifyRabbitMQ = "rabbitmq"
	// NotifyKafka publish notifications to kafka
	NotifyKafka = "kafka"
	// NotifyNone disable notifications
	NotifyNone = "none"
)

// ApplyDefaults fill zero values
func (c *Chat) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMongo
	}
	if c.Notify.Driver == "" {
		c.Notify.Driver = NotifyNone
	}
	if c.Notify.Queue == "" {
		c.Notify.Queue = "chat.notifications"
	}
	if c.Delivery.PushTimeout <= 0 {
		c.Delivery.PushTimeout = 500 * time.Millisecond
	}
	if c.Delivery.SendBuffer <= 0 {
		c.Delivery.SendBuffer = 64
	}
	if c.Delivery.PingInterval <= 0 {
		c.Delivery.PingInterval = 30 * time.Second
	}
	if c.Delivery.PresenceTTL <= 0 {
		c.Delivery.PresenceTTL = 3 * c.Delivery.PingInterval
	}
	if c.Delivery.LookupLimit <= 0 {
		c.Delivery.LookupLimit = 8
	}
	if c.MinIO.PresignExpiry <= 0 {
		c.MinIO.PresignExpiry = 15 * time.Minute
	}
}
