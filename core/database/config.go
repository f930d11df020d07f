package database

// Config holds configuration for the database connection.
type Config struct {
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port.
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user.
	User string `mapstructure:"user" default:"root"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name, or the file path when Driver is sqlite.
	Name string `mapstructure:"name" default:"ss13"`
	// Driver is the database driver (mysql, sqlite).
	Driver string `mapstructure:"driver" default:"mysql"`
	// TimeoutSeconds bounds connection setup and socket reads/writes.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
	// TablePrefix is prepended to the discord_links table name.
	TablePrefix string `mapstructure:"table_prefix" default:""`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// IsZero reports whether no connection target is configured.
func (c Config) IsZero() bool {
	return c.Host == "" && c.Name == ""
}
