// Package config provides configuration types and loading for zapdesk.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Provider, Channels, Telemetry.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Provider  ProviderConfig  `json:"provider"`
	Channels  ChannelsConfig  `json:"channels"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ProviderConfig contains settings for the completion provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
	Model   string `json:"model,omitempty" envconfig:"MODEL"`
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Slack    SlackConfig    `json:"slack"`
}

// WhatsAppConfig configures the WhatsApp channel.
type WhatsAppConfig struct {
	Enabled bool `json:"enabled" envconfig:"WHATSAPP_ENABLED"`
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken string `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
}

// TelemetryConfig configures the Kafka decision event stream. Empty brokers
// disable publishing; decisions are still logged locally.
type TelemetryConfig struct {
	KafkaBrokers []string `json:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`
	Topic        string   `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.zapdesk",
		},
		Provider: ProviderConfig{
			APIBase: "https://api.openai.com/v1",
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{Enabled: true},
		},
		Telemetry: TelemetryConfig{
			Topic: "zapdesk.decisions",
		},
	}
}
