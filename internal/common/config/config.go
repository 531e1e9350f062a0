// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Search        SearchConfig        `mapstructure:"search"`
	Feed          FeedConfig          `mapstructure:"feed"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds, 0 keeps SSE streams open
	RequestTimeout int      `mapstructure:"request_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// RedisConfig serves the token cache, sign-in state and filter-options cache.
// Timeouts are in milliseconds.
type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdle      int    `mapstructure:"min_idle"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// AuthConfig holds identity provider settings.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_uri"`
	} `mapstructure:"keycloak"`

	IdentityCacheTTL int    `mapstructure:"identity_cache_ttl"` // seconds
	SignInStateTTL   int    `mapstructure:"sign_in_state_ttl"`  // seconds
	SignInPath       string `mapstructure:"sign_in_path"`
}

// StorageConfig holds object storage settings for resumes and company logos.
type StorageConfig struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	UsePathStyle   bool   `mapstructure:"use_path_style"`
	ResumeBucket   string `mapstructure:"resume_bucket"`
	LogoBucket     string `mapstructure:"logo_bucket"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	SignedURLTTL   int    `mapstructure:"signed_url_ttl"` // seconds
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// NotificationConfig holds settings for applicant email and event publishing.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Events struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"events"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Timeout int `mapstructure:"timeout"` // milliseconds
}

// SearchConfig holds settings for the job search index.
type SearchConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Index        string `mapstructure:"index"`
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
}

// FeedConfig holds settings for the postjob change feed.
type FeedConfig struct {
	Channel              string `mapstructure:"channel"`
	MinReconnectInterval int    `mapstructure:"min_reconnect_interval"` // milliseconds
	MaxReconnectInterval int    `mapstructure:"max_reconnect_interval"` // milliseconds
	SubscriberBuffer     int    `mapstructure:"subscriber_buffer"`
	FilterOptionsTTL     int    `mapstructure:"filter_options_ttl"` // seconds
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
