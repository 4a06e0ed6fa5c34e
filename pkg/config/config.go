package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration, loaded from the environment with
// a BAITHAK_ prefix. Defaults target a local single-node dev setup.
type Config struct {
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080"`
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	ScyllaHosts   []string      `envconfig:"SCYLLA_HOSTS" default:"localhost:9042"`
	ScyllaTimeout time.Duration `envconfig:"SCYLLA_TIMEOUT" default:"5s"`
	Keyspace      string        `envconfig:"KEYSPACE" default:"baithak"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	KafkaBrokers  []string      `envconfig:"KAFKA_BROKERS" default:"localhost:19092"`
	KafkaTopic    string        `envconfig:"KAFKA_TOPIC" default:"message-events"`
	KafkaGroupID  string        `envconfig:"KAFKA_GROUP_ID" default:"archiver-group"`
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"dev-only-secret"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	SnowflakeNode int64         `envconfig:"SNOWFLAKE_NODE" default:"1"`
	UploadDir     string        `envconfig:"UPLOAD_DIR" default:"uploads"`
}

// Load reads an optional .env file, then the environment. A missing .env is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("baithak", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
