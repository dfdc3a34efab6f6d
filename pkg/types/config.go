package types

// ProjectConfig is the top-level askql.yaml configuration.
type ProjectConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Provider string          `yaml:"provider"` // "redis" or "dynamodb"
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres"`
	Planner  ServiceConfig   `yaml:"planner"`
	Executor ServiceConfig   `yaml:"executor"`
	Safety   SafetyConfig    `yaml:"safety,omitempty"`
	Cache    CacheConfig     `yaml:"cache,omitempty"`
	Jobs     JobsConfig      `yaml:"jobs,omitempty"`
	Relay    RelayConfig     `yaml:"relay,omitempty"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// RedisConfig configures the Redis key-value provider.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// DynamoDBConfig configures the DynamoDB key-value provider.
type DynamoDBConfig struct {
	TableName   string `yaml:"tableName"`
	Region      string `yaml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"` // for DynamoDB Local
	CreateTable bool   `yaml:"createTable,omitempty"`
}

// PostgresConfig configures the relational store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ServiceConfig points at an external HTTP collaborator.
type ServiceConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Timeout string `yaml:"timeout,omitempty"` // Go duration string
}

// SafetyConfig tunes the plan safety validator.
type SafetyConfig struct {
	FidelityThreshold float64 `yaml:"fidelityThreshold,omitempty"`
}

// CacheConfig tunes the fingerprint dedup cache.
type CacheConfig struct {
	TTL string `yaml:"ttl,omitempty"` // Go duration string, default 24h
}

// JobsConfig tunes job processing.
type JobsConfig struct {
	AskConcurrency int `yaml:"askConcurrency,omitempty"` // default 1
}

// RelayConfig tunes the push-update relay.
type RelayConfig struct {
	Fanout bool `yaml:"fanout,omitempty"` // share updates across instances via Redis Streams
}
