/*
Package config loads application settings from environment variables.

PURPOSE:
  One Settings value is loaded at startup and passed to the factory,
  which selects live or deterministic backends based on which credentials
  are present. Business logic never reads the environment.

VARIABLES:
  BANKFEED_LINK_ID / BANKFEED_SECRET_KEY / BANKFEED_CORP_NUM
                       Live bank-feed credentials; absent -> mock source
  BANKFEED_BASE_URL    Feed endpoint override (testing)
  GEMINI_API_KEY       Text generation; absent -> template fallback
  SMTP_HOST/PORT/USER/PASSWORD/FROM
                       Accountant email delivery; absent -> noop sink
  SLACK_BOT_TOKEN / SLACK_CHANNEL_ID
                       Slack notifications; absent -> noop sink
  ENCRYPTION_KEY       Passphrase for the account-number cipher
  DOCUMENTS_PATH       Upload storage directory
  ACCOUNTANT_EMAIL     Default delivery recipient
*/
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Settings holds all externally supplied configuration.
type Settings struct {
	// Bank feed
	FeedLinkID    string
	FeedSecretKey string
	FeedCorpNum   string
	FeedBaseURL   string

	// Text generation
	GeminiAPIKey string

	// Email (SMTP)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Slack
	SlackBotToken  string
	SlackChannelID string

	// Security
	EncryptionKey string

	// Storage
	DocumentsPath string

	// Delivery defaults
	AccountantEmail string
}

// Load reads settings from the environment, applying defaults.
func Load() Settings {
	return Settings{
		FeedLinkID:    os.Getenv("BANKFEED_LINK_ID"),
		FeedSecretKey: os.Getenv("BANKFEED_SECRET_KEY"),
		FeedCorpNum:   os.Getenv("BANKFEED_CORP_NUM"),
		FeedBaseURL:   os.Getenv("BANKFEED_BASE_URL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		SMTPHost:     envDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		SlackBotToken:  os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannelID: os.Getenv("SLACK_CHANNEL_ID"),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		DocumentsPath: envDefault("DOCUMENTS_PATH", defaultDocumentsDir()),

		AccountantEmail: os.Getenv("ACCOUNTANT_EMAIL"),
	}
}

// IsFeedConfigured reports whether live bank-feed credentials are present.
func (s Settings) IsFeedConfigured() bool {
	return s.FeedLinkID != "" && s.FeedSecretKey != ""
}

// IsGeminiConfigured reports whether the text-generation key is present.
func (s Settings) IsGeminiConfigured() bool {
	return s.GeminiAPIKey != ""
}

// IsSMTPConfigured reports whether email delivery can be attempted.
func (s Settings) IsSMTPConfigured() bool {
	return s.SMTPHost != "" && s.SMTPUser != "" && s.SMTPPassword != ""
}

// IsSlackConfigured reports whether Slack notifications can be attempted.
func (s Settings) IsSlackConfigured() bool {
	return s.SlackBotToken != "" && s.SlackChannelID != ""
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func defaultDocumentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./documents"
	}
	return filepath.Join(home, "taxdesk", "documents")
}
