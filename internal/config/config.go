package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file if present. Missing files are fine in
// production where everything comes from the environment.
func Load() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func ServerAddr() string {
	return GetEnv("SERVER_ADDR", ":8080")
}

func ExpoAccessToken() string {
	return os.Getenv("EXPO_ACCESS_TOKEN")
}

// ReceiptCheckDelay is how long after a dispatch the delivery receipts
// are fetched. Expo needs a few seconds before receipts are available.
func ReceiptCheckDelay() time.Duration {
	return time.Duration(GetEnvInt("RECEIPT_CHECK_DELAY_SECONDS", 30)) * time.Second
}

// ReminderHour is the local hour at which the scheduler emits
// reminder events for each user.
func ReminderHour() int {
	return GetEnvInt("REMINDER_HOUR", 9)
}

// InactiveAfter is how long a user goes without any notification
// before the daily digest is replaced by an inactivity nudge.
func InactiveAfter() time.Duration {
	return time.Duration(GetEnvInt("INACTIVE_AFTER_DAYS", 7)) * 24 * time.Hour
}
