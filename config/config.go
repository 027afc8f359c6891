package config

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// LoadEnv reads a .env file when one is present. Values already set in the
// environment win.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load env file: %v", err)
	}
}

func MustInitPostgres() *sql.DB {
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "dineqr")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := os.Getenv("DB_PASSWORD")

	connStr := "host=" + dbHost + " port=" + dbPort + " user=" + dbUser +
		" password=" + dbPassword + " dbname=" + dbName + " sslmode=disable"

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err = db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return db
}

func MustInitRedis() *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	return client
}

func NewKafkaReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers(),
		Topic:   topic,
		GroupID: groupID,
	})
}

func NewKafkaWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers()...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func brokers() []string {
	var out []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKER", "localhost:9092"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type Relay struct {
	Addr          string
	EventsTopic   string
	PublicBaseURL string
	SnapshotTTL   time.Duration
	PollTimeout   time.Duration
	PollIdle      time.Duration
}

func LoadRelay() Relay {
	return Relay{
		Addr:          getEnv("RELAY_ADDR", ":8090"),
		EventsTopic:   getEnv("EVENTS_TOPIC", "dineqr-events"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:5173"),
		SnapshotTTL:   getDuration("SNAPSHOT_TTL", 5*time.Second),
		PollTimeout:   getDuration("POLL_TIMEOUT", 25*time.Second),
		PollIdle:      getDuration("POLL_IDLE", time.Minute),
	}
}

type Client struct {
	SocketURL      string
	APILocal       string
	APIDeployed    string
	Hostname       string
	ReconnectDelay time.Duration
	DisablePolling bool
	RequestTimeout time.Duration
}

func LoadClient() Client {
	hostname, _ := os.Hostname()
	return Client{
		SocketURL:      getEnv("SOCKET_URL", "http://localhost:8090"),
		APILocal:       getEnv("API_LOCAL_URL", "http://localhost:5000"),
		APIDeployed:    getEnv("API_URL", "https://api.dineqr.app"),
		Hostname:       getEnv("CLIENT_HOSTNAME", hostname),
		ReconnectDelay: getDuration("SOCKET_RECONNECT_DELAY", 2*time.Second),
		DisablePolling: getBool("SOCKET_DISABLE_POLLING", false),
		RequestTimeout: getDuration("API_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}
