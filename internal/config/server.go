package config

import (
	"os"
	"strconv"
	"time"
)

// FakerConfig configures the fake upstream API server. Loaded from
// environment variables in the container-friendly style.
type FakerConfig struct {
	Port             string        // listen port
	AutoInterval     time.Duration // auto-transmit period; 0 disables
	AutoPayloadBytes int           // size of generated payloads
	StartSeq         uint32        // first sequence number handed out
	ZstdEnabled      bool          // serve zstd-encoded payloads when asked
}

func LoadFakerConfig() *FakerConfig {
	return &FakerConfig{
		Port:             getEnvOrDefault("FAKER_PORT", "9123"),
		AutoInterval:     time.Duration(getEnvIntOrDefault("FAKER_AUTO_INTERVAL_MS", 0)) * time.Millisecond,
		AutoPayloadBytes: getEnvIntOrDefault("FAKER_AUTO_PAYLOAD_BYTES", 256),
		StartSeq:         uint32(getEnvIntOrDefault("FAKER_START_SEQ", 1)),
		ZstdEnabled:      getEnvBoolOrDefault("FAKER_ZSTD", true),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
