package main

import "time"

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	TokenDuration        time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	SendRatePerSecond    float64       `env:"SEND_RATE_PER_SECOND,default=5"`
	SendRateBurst        int           `env:"SEND_RATE_BURST,default=10"`
	SendRateIdleTTL      time.Duration `env:"SEND_RATE_IDLE_TTL,default=10m"`
}
