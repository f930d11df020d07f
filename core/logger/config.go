package logger

const (
	// FormatJSON writes one JSON object per entry. It is the default.
	FormatJSON = "json"
	// FormatConsole writes colored, human readable lines for local runs.
	FormatConsole = "console"
)

// Config is the log section of the service configuration, set through
// LOG_LEVEL and LOG_FORMAT or the config file.
type Config struct {
	// Level is debug, info, warn or error. Empty means info. Debug also
	// switches to zap's development settings so entries carry caller
	// stacks and ISO8601 times.
	Level string `mapstructure:"level" default:"info"`
	// Format is FormatJSON or FormatConsole. Anything else falls back to JSON.
	Format string `mapstructure:"format" default:"json"`
}
