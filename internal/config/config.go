package config

import (
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	HTTPAddr           string `yaml:"http_addr"`
	TerminalAddr       string `yaml:"terminal_addr"`
	KitchenDisplayAddr string `yaml:"kitchen_display_addr"` // legacy TCP display, empty disables forwarding
	MenuFile           string `yaml:"menu_file"`
}

type Floor struct {
	Tables   int `yaml:"tables"`   // "Masa 1".."Masa N"
	Packages int `yaml:"packages"` // "Paket 1".."Paket M"
}

type Database struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Pass, d.Host, d.Port, d.Name)
}

type RabbitMQ struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	User  string `yaml:"user"`
	Pass  string `yaml:"password"`
	VHost string `yaml:"vhost"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Snapshot struct {
	Backend         string `yaml:"backend"` // file | redis
	Path            string `yaml:"path"`
	Key             string `yaml:"key"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

func (s Snapshot) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

type POS struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Protocol string `yaml:"protocol"` // demo | generic | beko-json
}

type Config struct {
	Server   Server   `yaml:"server"`
	Floor    Floor    `yaml:"floor"`
	Database Database `yaml:"database"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	Redis    Redis    `yaml:"redis"`
	Snapshot Snapshot `yaml:"snapshot"`
	POS      POS      `yaml:"pos"`
}

// Load reads a YAML config, fills defaults and applies environment
// overrides for the secrets that should not live in the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: Server{
			HTTPAddr:     ":8080",
			TerminalAddr: ":5555",
			MenuFile:     "menu.txt",
		},
		Floor:    Floor{Tables: 16, Packages: 4},
		Database: Database{Host: "localhost", Port: 5432, User: "postgres", Name: "fastfoot"},
		RabbitMQ: RabbitMQ{Host: "localhost", Port: 5672, User: "guest", Pass: "guest"},
		Redis:    Redis{Addr: "localhost:6379"},
		Snapshot: Snapshot{Backend: "file", Path: "pos_state.json", IntervalSeconds: 10},
		POS:      POS{Protocol: "demo"},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Pass = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		c.RabbitMQ.Pass = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

func (c *Config) validate() error {
	if c.Floor.Tables < 1 {
		return fmt.Errorf("floor.tables must be at least 1")
	}
	if c.Floor.Packages < 0 {
		return fmt.Errorf("floor.packages must not be negative")
	}
	switch c.Snapshot.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}
	return nil
}

// SlotNames expands the floor plan into the fixed slot list.
func (c *Config) SlotNames() []string {
	names := make([]string, 0, c.Floor.Tables+c.Floor.Packages)
	for i := 1; i <= c.Floor.Tables; i++ {
		names = append(names, fmt.Sprintf("Masa %d", i))
	}
	for i := 1; i <= c.Floor.Packages; i++ {
		names = append(names, fmt.Sprintf("Paket %d", i))
	}
	return names
}

// FindConfig walks the usual locations when --config is not given.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
