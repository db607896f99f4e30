package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTIssuer      string        `mapstructure:"JWT_ISSUER"`
	JWTTTL         time.Duration `mapstructure:"JWT_TTL"`
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// devJWTSecret signs tokens when ENV=development and no secret is configured.
const devJWTSecret = "mediconnect-development-secret-do-not-use-in-prod"

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"JWT_SECRET", "JWT_ISSUER", "JWT_TTL", "BCRYPT_COST",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_ISSUER", "mediconnect")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a real signing secret of at least 32 bytes is required.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set explicitly when ENV=%q", c.Env)
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
