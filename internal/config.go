package internal

import "time"

type Config struct {
	ListenPort       int           `env:"CHAT_WS_PORT,default=3101"`
	MaxConnections   int           `env:"CHAT_MAX_CONNECTIONS,default=256"`
	RateLimitWindow  time.Duration `env:"CHAT_SOCKET_RATE_LIMIT_WINDOW,default=1m"`
	RateLimitMax     int           `env:"CHAT_SOCKET_RATE_LIMIT_MAX,default=20"`
	MaxInFlight      int           `env:"CHAT_MAX_INFLIGHT_PER_CONNECTION,default=8"`
	MaxBufferedBytes int64         `env:"CHAT_MAX_BUFFERED_BYTES,default=65536"`
	SendQueueLength  int           `env:"CHAT_SEND_QUEUE_LENGTH,default=64"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL,default=5m"`

	// RedisAddr empty runs the gateway without cross-process relay,
	// idempotency or caching.
	RedisAddr      string `env:"REDIS_ADDR"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
}
