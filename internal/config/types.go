package config

// Config is the top-level configuration structure parsed from sprintfactory.yaml.
type Config struct {
	LLM       LLM       `yaml:"llm" mapstructure:"llm"`
	Interview Interview `yaml:"interview" mapstructure:"interview"`
	Planning  Planning  `yaml:"planning" mapstructure:"planning"`
	Store     Store     `yaml:"store" mapstructure:"store"`
	Session   Session   `yaml:"session" mapstructure:"session"`
	Server    Server    `yaml:"server" mapstructure:"server"`
}

// LLM holds the three free-text model settings plus transport tuning.
type LLM struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     string  `yaml:"timeout" mapstructure:"timeout"` // empty or "0s" = no client-side timeout
}

// Interview tunes the adaptive interview loop.
type Interview struct {
	ReadyThreshold int `yaml:"ready_threshold" mapstructure:"ready_threshold"`
}

// Planning tunes the three-stage planning pipeline.
type Planning struct {
	HoursPerWeek        int     `yaml:"hours_per_week" mapstructure:"hours_per_week"`
	SeniorityMultiplier float64 `yaml:"seniority_multiplier" mapstructure:"seniority_multiplier"`
	TemplateDir         string  `yaml:"template_dir" mapstructure:"template_dir"`
}

// Store selects and configures the context store backend.
type Store struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // "sqlite", "postgres" or "memory"
	Path        string `yaml:"path" mapstructure:"path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	ChunkSize   int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	TopK        int    `yaml:"top_k" mapstructure:"top_k"`
}

// Session selects where interview/plan session state lives.
type Session struct {
	Backend       string `yaml:"backend" mapstructure:"backend"` // "file", "memory" or "redis"
	Dir           string `yaml:"dir" mapstructure:"dir"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTL           string `yaml:"ttl" mapstructure:"ttl"`
}

// Server configures the HTTP API.
type Server struct {
	Port int `yaml:"port" mapstructure:"port"`
}
