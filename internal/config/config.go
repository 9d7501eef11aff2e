package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EnvFile is read on Load when present. Real environment variables win over it.
const EnvFile = ".env"

func Load() error {
	// API Configuration
	viper.SetDefault("API_ADDR", ":5000")
	viper.SetDefault("STATIC_DIR", "web")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	// Analyzer
	viper.SetDefault("GOOGLE_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash-latest")
	viper.SetDefault("PROVIDER_TIMEOUT", "60s")

	// Device ingest over MQTT
	viper.SetDefault("MQTT_ENABLED", "false")
	viper.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	viper.SetDefault("MQTT_TOPIC", "energy/readings")
	viper.SetDefault("MQTT_CLIENT_ID", "energy-monitor")

	// Reading journal, disabled when empty
	viper.SetDefault("DB_DSN", "")

	// AWS Configuration
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_SNS_TOPIC_ARN", "")
	viper.SetDefault("USE_CLOUD_SERVICES", "false") // Toggle for local vs cloud

	viper.AutomaticEnv()

	if _, err := os.Stat(EnvFile); err == nil {
		viper.SetConfigFile(EnvFile)
		viper.SetConfigType("env")
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", EnvFile, err)
		}
	}

	if _, err := time.ParseDuration(viper.GetString("PROVIDER_TIMEOUT")); err != nil {
		return fmt.Errorf("invalid PROVIDER_TIMEOUT %q: %w", viper.GetString("PROVIDER_TIMEOUT"), err)
	}
	return nil
}

// Validate reports settings the API process cannot start without.
func Validate() error {
	if GoogleAPIKey() == "" {
		return errors.New("GOOGLE_API_KEY is not set (add GOOGLE_API_KEY=... to the environment or .env)")
	}
	if UseCloudServices() && SNSTopicArn() == "" {
		return errors.New("USE_CLOUD_SERVICES=true requires AWS_SNS_TOPIC_ARN")
	}
	return nil
}

func APIAddr() string                { return viper.GetString("API_ADDR") }
func StaticDir() string              { return viper.GetString("STATIC_DIR") }
func LogLevel() string               { return viper.GetString("LOG_LEVEL") }
func LogFormat() string              { return viper.GetString("LOG_FORMAT") }
func GoogleAPIKey() string           { return viper.GetString("GOOGLE_API_KEY") }
func GeminiModel() string            { return viper.GetString("GEMINI_MODEL") }
func ProviderTimeout() time.Duration { return viper.GetDuration("PROVIDER_TIMEOUT") }
func MQTTEnabled() bool              { return viper.GetBool("MQTT_ENABLED") }
func MQTTBroker() string             { return viper.GetString("MQTT_BROKER") }
func MQTTTopic() string              { return viper.GetString("MQTT_TOPIC") }
func MQTTClientID() string           { return viper.GetString("MQTT_CLIENT_ID") }
func DBDSN() string                  { return viper.GetString("DB_DSN") }
func AWSRegion() string              { return viper.GetString("AWS_REGION") }
func SNSTopicArn() string            { return viper.GetString("AWS_SNS_TOPIC_ARN") }
func UseCloudServices() bool         { return viper.GetBool("USE_CLOUD_SERVICES") }
