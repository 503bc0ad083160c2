package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Postgres struct {
	Host          string `yaml:"host"`
	Port          uint16 `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	DBName        string `yaml:"dbname"`
	ConnectionStr string `yaml:"connection_str"` // takes precedence over the discrete fields
	UseSSL        bool   `yaml:"use_ssl"`
}

type KafkaSink struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Postgres        Postgres   `yaml:"postgres"`
	Kafka           KafkaSink  `yaml:"kafka"`
	PanicOnDBErrors bool       `yaml:"panic_on_db_errors"`
	HTTP            HTTPConfig `yaml:"http"`
	Log             LogConfig  `yaml:"log"`
}

func LoadFromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return Config{}, errors.New("CONFIG_PATH is not set")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}

	// Apply defaults
	if c.Postgres.ConnectionStr == "" {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.DBName == "" {
			c.Postgres.DBName = "solana"
		}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Postgres.ConnectionStr == "" && (c.Postgres.Host == "" || c.Postgres.User == "") {
		return errors.New("postgres: either connection_str or host and user must be set")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka: topic is required when brokers are set")
	}
	return nil
}

// ConnString returns a connection string usable by pgx.ParseConfig.
func (p Postgres) ConnString() string {
	if p.ConnectionStr != "" {
		return p.ConnectionStr
	}
	sslmode := "disable"
	if p.UseSSL {
		sslmode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))),
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + sslmode,
	}
	return u.String()
}

// String renders the config for diagnostics with secrets redacted.
func (p Postgres) String() string {
	password := ""
	if p.Password != "" {
		password = "REDACTED"
	}
	connStr := ""
	if p.ConnectionStr != "" {
		connStr = redactConnString(p.ConnectionStr)
	}
	return fmt.Sprintf("{host:%q port:%d user:%q password:%q dbname:%q connection_str:%q use_ssl:%t}",
		p.Host, p.Port, p.User, password, p.DBName, connStr, p.UseSSL)
}

func redactConnString(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		// keyword/value form may carry a password anywhere in the string
		return "REDACTED"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
