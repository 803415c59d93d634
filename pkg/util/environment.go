package util

import (
	"os"
	"strconv"
	"strings"
	"time"

	iso8601 "github.com/senseyeio/duration"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

func GetEnvironmentVariable(name string, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}

	return fallback
}

// GetEnvironmentDuration reads a window or interval setting. Accepts ISO8601
// periods ("PT30M") as well as Go duration strings ("30m").
func GetEnvironmentDuration(name string, fallback time.Duration) time.Duration {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}

	if isoDuration, err := iso8601.ParseISO8601(value); err == nil {
		reference := time.Now()
		return isoDuration.Shift(reference).Sub(reference)
	}

	if goDuration, err := time.ParseDuration(value); err == nil {
		return goDuration
	}

	return fallback
}

func GetEnvironmentFloat(name string, fallback float64) float64 {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}

	if number, err := strconv.ParseFloat(value, 64); err == nil {
		return number
	}

	return fallback
}
