// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

var validate = validator.New()

// Config holds the whole bridge configuration.
type Config struct {
	IRC     IRCConfig         `yaml:"irc"`
	XMPP    XMPPConfig        `yaml:"xmpp"`
	Logging zeroconfig.Config `yaml:"logging"`
}

// IRCConfig configures the channel-style endpoint.
type IRCConfig struct {
	Server   string `yaml:"server" env:"SERVER" validate:"required"`
	Port     int    `yaml:"port" env:"PORT" validate:"required,min=1,max=65535"`
	SSL      bool   `yaml:"ssl" env:"SSL"`
	Nick     string `yaml:"nick" env:"NICK" validate:"required"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	Channel  string `yaml:"channel" env:"CHANNEL" validate:"required,startswith=#"`
	// ReconnectDelay is how long to wait before redialing after the
	// connection drops.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY" validate:"min=0"`
}

// XMPPConfig configures the roster-style endpoint.
type XMPPConfig struct {
	JID      string `yaml:"jid" env:"JID" validate:"required,contains=@"`
	Password string `yaml:"password" env:"PASSWORD" validate:"required"`
	// Address is the host:port to connect to. Defaults to the JID's domain
	// on port 5222.
	Address string `yaml:"address" env:"ADDRESS"`
	// SubscriptionsFile is where the subscriber directory is persisted.
	SubscriptionsFile string        `yaml:"subscriptions_file" env:"SUBSCRIPTIONS_FILE" validate:"required"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY" validate:"min=0"`
}

// DefaultConfig returns the values used for keys missing from the file.
func DefaultConfig() Config {
	return Config{
		IRC: IRCConfig{
			Port:           6667,
			Name:           "IRC-XMPP bridge",
			ReconnectDelay: 30 * time.Second,
		},
		XMPP: XMPPConfig{
			SubscriptionsFile: "subscriptions.yaml",
			ReconnectDelay:    30 * time.Second,
		},
	}
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// LoadConfig reads the YAML file at path, applies BRIDGE_IRC_* and
// BRIDGE_XMPP_* environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.IRC, env.Options{Prefix: "BRIDGE_IRC_"}); err != nil {
		return nil, fmt.Errorf("failed to parse IRC environment overrides: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.XMPP, env.Options{Prefix: "BRIDGE_XMPP_"}); err != nil {
		return nil, fmt.Errorf("failed to parse XMPP environment overrides: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PostProcess validates required fields and fills derived values.
func (c *Config) PostProcess() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.XMPP.Address == "" {
		c.XMPP.Address = net.JoinHostPort(jidDomain(c.XMPP.JID), "5222")
	}
	return nil
}

// Logger builds the root logger from the logging section. Without any
// writers configured, logs go to stdout in colored text.
func (c *Config) Logger() (*zerolog.Logger, error) {
	logCfg := c.Logging
	if len(logCfg.Writers) == 0 {
		logCfg.Writers = []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStdout,
			Format: zeroconfig.LogFormatPrettyColored,
		}}
	}
	log, err := logCfg.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return log, nil
}

func jidDomain(jid string) string {
	bare := BareJID(jid)
	if at := strings.LastIndexByte(bare, '@'); at >= 0 {
		return bare[at+1:]
	}
	return bare
}
