package config

import (
	"log"

	"github.com/spf13/viper"
)

type SchedulerConfig struct {
	// Driver selects the alert scheduler backend: "temporal" or "local".
	Driver       string `mapstructure:"driver"`
	TemporalHost string `mapstructure:"temporal_host"`
}

type Config struct {
	DatabaseURL    string          `mapstructure:"database_url"`
	ServerPort     string          `mapstructure:"server_port"`
	JWTSecret      string          `mapstructure:"jwt_secret"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	Scheduler      SchedulerConfig `mapstructure:"scheduler"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Scheduler.Driver == "" {
		config.Scheduler.Driver = "local"
	}
	if config.Scheduler.Driver != "local" && config.Scheduler.Driver != "temporal" {
		log.Fatalf("Unknown scheduler driver %q", config.Scheduler.Driver)
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"http://localhost:3000"}
	}

	return &config
}
