package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ckeytools/core/cache"
	"ckeytools/core/database"
	"ckeytools/core/discord"
	"ckeytools/core/guild"
	"ckeytools/core/logger"
	"ckeytools/core/server"
	"ckeytools/core/storage"
	"ckeytools/core/verification"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the link export object storage.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds the default link database connection.
	Database database.Config `mapstructure:"database"`
	// Redis holds configuration for session and mark persistence.
	Redis cache.Config `mapstructure:"redis"`
	// Discord holds the bot connection settings.
	Discord discord.Config `mapstructure:"discord"`
	// Verification holds session and retry tunables.
	Verification verification.Config `mapstructure:"verification"`
	// Guilds lists the guilds the service acts for. Only read from config.yaml.
	Guilds []guild.Config `mapstructure:"guilds"`
}

// LoadConfig loads configuration from environment variables, a .env file and
// an optional config.yaml in path.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// 2. Guild lists only fit in YAML
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		case reflect.Slice, reflect.Map, reflect.Ptr:
			// Defaults would shadow lists read from the config file.
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
