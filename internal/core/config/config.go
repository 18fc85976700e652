package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`
	// BaseURL is the public origin used to build driver tracking links.
	BaseURL string `mapstructure:"BASE_URL" default:"http://localhost:8080"`

	// Database holds the PostgreSQL configuration.
	Database DatabaseConfig `mapstructure:",squash"`

	// Redis holds the cache configuration.
	Redis RedisConfig `mapstructure:",squash"`

	// Broker holds the RabbitMQ configuration.
	Broker BrokerConfig `mapstructure:",squash"`

	// Tracking holds the position-ingestion loop configuration.
	Tracking TrackingConfig `mapstructure:",squash"`

	// Collaborators holds the external lookup service configuration.
	Collaborators CollaboratorConfig `mapstructure:",squash"`
}

// DatabaseConfig holds PostgreSQL connection details.
type DatabaseConfig struct {
	// URL is the pgx connection string. Empty means the in-memory store is used.
	URL string `mapstructure:"DATABASE_URL"`
}

// RedisConfig holds cache connection details.
type RedisConfig struct {
	// URL is the redis connection string (redis://[:password@]host[:port][/db]).
	URL string `mapstructure:"REDIS_URL" default:"redis://localhost:6379"`
}

// BrokerConfig holds RabbitMQ connection details.
type BrokerConfig struct {
	// URL is the amqp connection string. Empty disables alert publishing.
	URL string `mapstructure:"RABBITMQ_URL"`
	// Exchange is the topic exchange where shipment events are published.
	Exchange string `mapstructure:"RABBITMQ_EXCHANGE" default:"cargas.events"`
}

// TrackingConfig holds the ingestion-loop tuning knobs.
type TrackingConfig struct {
	// CaptureIntervalMinutes is how often a tracking session captures a fix.
	CaptureIntervalMinutes int `mapstructure:"TRACKING_INTERVAL_MINUTES" default:"5"`
	// CaptureTimeoutSeconds bounds a single geolocation acquisition.
	CaptureTimeoutSeconds int `mapstructure:"TRACKING_CAPTURE_TIMEOUT_SECONDS" default:"10"`
	// RefreshIntervalSeconds is the dashboard auto-refresh cadence.
	RefreshIntervalSeconds int `mapstructure:"DASHBOARD_REFRESH_SECONDS" default:"30"`
}

// CollaboratorConfig holds the external address/geocoding services.
type CollaboratorConfig struct {
	// ViaCepURL is the base URL of the CEP lookup service.
	ViaCepURL string `mapstructure:"VIACEP_URL" default:"https://viacep.com.br/ws"`
	// GeocoderURL is the base URL of the city/state geocoding service.
	GeocoderURL string `mapstructure:"GEOCODER_URL" required:"true"`
	// GeocoderToken is the API token for the geocoding service.
	GeocoderToken string `mapstructure:"GEOCODER_TOKEN"`
	// GatewayURL is the base URL of the GPS gateway, if a device feed exists.
	GatewayURL string `mapstructure:"GPS_GATEWAY_URL"`
	// GatewayToken is the bearer token for the GPS gateway.
	GatewayToken string `mapstructure:"GPS_GATEWAY_TOKEN"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
