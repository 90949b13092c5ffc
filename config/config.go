package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set
const DefaultPath = "./config/config.prod.yml"

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Log struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`

	Cognito struct {
		AppClientId     string `yaml:"appClientId"`
		AppClientSecret string `yaml:"appClientSecret"`
		UserPoolId      string `yaml:"userPoolId"`
		Region          string `yaml:"region"`
	} `yaml:"cognito"`

	Database struct {
		URI          string `yaml:"uri"`
		Transactions bool   `yaml:"transactions"` // requires a replica set
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret string `yaml:"secret"`
		Expiry int    `yaml:"expiry"` // Token expiry in minutes
	} `yaml:"jwt"`

	RBAC struct {
		// Persist stores policies in MongoDB (casbin_rule) instead of memory
		Persist bool `yaml:"persist"`
		// Policies are "role, resource, action" triples
		Policies [][]string `yaml:"policies"`
	} `yaml:"rbac"`

	XP struct {
		RateLimitWindow time.Duration `yaml:"rateLimitWindow"`
		RateLimitMax    int           `yaml:"rateLimitMax"`
		EventStream     string        `yaml:"eventStream"`
	} `yaml:"xp"`
}

// LoadConfig reads the configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config path from CONFIG_PATH or DefaultPath
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// applyEnv lets deployments keep secrets out of the YAML file
func (c *Config) applyEnv() {
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Database.URI = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 1313
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.JWT.Expiry == 0 {
		c.JWT.Expiry = 1440
	}
	if c.Cognito.Region == "" {
		c.Cognito.Region = "eu-south-2"
	}
	if c.XP.RateLimitWindow == 0 {
		c.XP.RateLimitWindow = time.Minute
	}
	if c.XP.RateLimitMax == 0 {
		c.XP.RateLimitMax = 10
	}
	if c.XP.EventStream == "" {
		c.XP.EventStream = "xp:events"
	}
	if len(c.RBAC.Policies) == 0 {
		c.RBAC.Policies = DefaultPolicies()
	}
}

// DefaultPolicies grants admins every XP operation and moderators read access
func DefaultPolicies() [][]string {
	return [][]string{
		{"admin", "level", "write"},
		{"admin", "experience", "write"},
		{"admin", "ledger", "read"},
		{"admin", "logs", "read"},
		{"moderator", "ledger", "read"},
	}
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("database.uri is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	for i, p := range c.RBAC.Policies {
		if len(p) != 3 {
			return fmt.Errorf("rbac.policies[%d] must have role, resource and action", i)
		}
	}
	return nil
}
