package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/brandon/mailsweep/internal/credential"
	"github.com/brandon/mailsweep/pkg/types"
)

// Config holds the application configuration
type Config struct {
	// Cache settings
	CachePath         string
	SchedulePath      string
	SearchResultLimit int
	LogLevel          string

	Scan ScanConfig

	// Accounts
	Accounts []AccountConfig
}

// ScanConfig holds scanner policy
type ScanConfig struct {
	Workers       int
	UnreadWorkers int
	ChunkSize     int
	IOTimeout     time.Duration
	IncludeTrash  bool
	Timezone      string
}

// Location loads the reference time zone used for all cutoff math
func (s ScanConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// AccountConfig holds configuration for a single email account
type AccountConfig struct {
	Name string

	// IMAP settings
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string

	// SMTP settings, only needed to answer mailto: unsubscribe links
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// Account returns the secret-free identity of the account
func (a *AccountConfig) Account() types.Account {
	return types.Account{
		Name:  a.Name,
		Email: a.IMAPUsername,
		Host:  a.IMAPHost,
		Port:  a.IMAPPort,
	}
}

// Session returns a connection handle for the account
func (a *AccountConfig) Session() *types.Session {
	return types.NewSession(a.Account(), a.IMAPPassword)
}

// HasSMTP reports whether outgoing mail is configured
func (a *AccountConfig) HasSMTP() bool {
	return a.SMTPHost != ""
}

// secretLookup resolves passwords missing from the environment
var secretLookup = credential.Get

// source reads keys from the environment, falling back to an optional
// config file named by MAILSWEEP_CONFIG.
type source struct {
	v *viper.Viper
}

func newSource() (*source, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := os.Getenv("MAILSWEEP_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return &source{v: v}, nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CachePath:         src.getEnv("CACHE_PATH", "/data/mailsweep.db"),
		SchedulePath:      src.getEnv("SCHEDULE_PATH", "/data/schedules.yaml"),
		SearchResultLimit: src.getEnvInt("SEARCH_RESULT_LIMIT", 100),
		LogLevel:          src.getEnv("LOG_LEVEL", "info"),
		Scan: ScanConfig{
			Workers:       src.getEnvInt("SCAN_WORKERS", 3),
			UnreadWorkers: src.getEnvInt("UNREAD_WORKERS", 4),
			ChunkSize:     src.getEnvInt("CHUNK_SIZE", 25),
			IOTimeout:     time.Duration(src.getEnvInt("IO_TIMEOUT_SECONDS", 30)) * time.Second,
			IncludeTrash:  src.getEnvBool("INCLUDE_TRASH", true),
			Timezone:      src.getEnv("TIMEZONE", "Asia/Manila"),
		},
	}

	// Load accounts
	accounts, err := src.loadAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no email accounts configured")
	}

	cfg.Accounts = accounts
	return cfg, nil
}

// loadAccounts loads email account configurations from environment variables
func (s *source) loadAccounts() ([]AccountConfig, error) {
	var accounts []AccountConfig

	// Single account configuration
	if s.hasSingleAccount() {
		account, err := s.loadAccount("", "default")
		if err != nil {
			return nil, err
		}
		return append(accounts, *account), nil
	}

	// Load multiple accounts (ACCOUNT_1_*, ACCOUNT_2_*, etc.)
	for num := 1; ; num++ {
		prefix := fmt.Sprintf("ACCOUNT_%d_", num)
		if s.getEnv(prefix+"NAME", "") == "" {
			break
		}
		account, err := s.loadAccount(prefix, "")
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", num, err)
		}
		accounts = append(accounts, *account)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts found in environment variables")
	}

	return accounts, nil
}

// hasSingleAccount checks if single account configuration exists
func (s *source) hasSingleAccount() bool {
	return s.getEnv("IMAP_HOST", "") != ""
}

// loadAccount reads one account from keys sharing prefix
func (s *source) loadAccount(prefix, defaultName string) (*AccountConfig, error) {
	nameKey := prefix + "NAME"
	if prefix == "" {
		nameKey = "ACCOUNT_NAME"
	}

	acc := &AccountConfig{
		Name:         s.getEnv(nameKey, defaultName),
		IMAPHost:     s.getEnv(prefix+"IMAP_HOST", ""),
		IMAPPort:     s.getEnvInt(prefix+"IMAP_PORT", types.DefaultIMAPPort),
		IMAPUsername: s.getEnv(prefix+"IMAP_USERNAME", ""),
		IMAPPassword: s.getEnv(prefix+"IMAP_PASSWORD", ""),
		SMTPHost:     s.getEnv(prefix+"SMTP_HOST", ""),
		SMTPPort:     s.getEnvInt(prefix+"SMTP_PORT", 587),
		SMTPUsername: s.getEnv(prefix+"SMTP_USERNAME", ""),
		SMTPPassword: s.getEnv(prefix+"SMTP_PASSWORD", ""),
	}

	if acc.IMAPHost == "" {
		return nil, fmt.Errorf("IMAP_HOST is required")
	}
	if acc.IMAPUsername == "" {
		return nil, fmt.Errorf("IMAP_USERNAME is required")
	}
	if acc.IMAPPassword == "" {
		secret, err := secretLookup("imap:" + acc.IMAPUsername)
		if err != nil {
			return nil, fmt.Errorf("IMAP_PASSWORD is required: %w", err)
		}
		acc.IMAPPassword = secret
	}

	if acc.HasSMTP() {
		if acc.SMTPUsername == "" {
			acc.SMTPUsername = acc.IMAPUsername
		}
		if acc.SMTPPassword == "" {
			if secret, err := secretLookup("smtp:" + acc.SMTPUsername); err == nil {
				acc.SMTPPassword = secret
			} else {
				acc.SMTPPassword = acc.IMAPPassword
			}
		}
	}

	return acc, nil
}

// getEnv gets a value or returns a default value
func (s *source) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(s.v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets a value as an integer or returns a default value
func (s *source) getEnvInt(key string, defaultValue int) int {
	if !s.v.IsSet(key) || s.getEnv(key, "") == "" {
		return defaultValue
	}
	return s.v.GetInt(key)
}

func (s *source) getEnvBool(key string, defaultValue bool) bool {
	if !s.v.IsSet(key) || s.getEnv(key, "") == "" {
		return defaultValue
	}
	return s.v.GetBool(key)
}

// GetAccountByName finds an account by name
func (c *Config) GetAccountByName(name string) (*AccountConfig, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", name)
}

// GetDefaultAccount returns the first account (or default account if named "default")
func (c *Config) GetDefaultAccount() *AccountConfig {
	if len(c.Accounts) == 0 {
		return nil
	}

	for i := range c.Accounts {
		if c.Accounts[i].Name == "default" {
			return &c.Accounts[i]
		}
	}

	return &c.Accounts[0]
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return fmt.Errorf("CACHE_PATH is required")
	}

	if c.SearchResultLimit < 1 || c.SearchResultLimit > 1000 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be between 1 and 1000")
	}

	if c.Scan.IOTimeout <= 0 {
		return fmt.Errorf("IO_TIMEOUT_SECONDS must be positive")
	}

	if _, err := c.Scan.Location(); err != nil {
		return err
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if seen[acc.Name] {
			return fmt.Errorf("account %s: duplicate name", acc.Name)
		}
		seen[acc.Name] = true
		if acc.IMAPHost == "" {
			return fmt.Errorf("account %s: IMAP_HOST is required", acc.Name)
		}
		if acc.IMAPPort < 1 || acc.IMAPPort > 65535 {
			return fmt.Errorf("account %s: invalid IMAP_PORT", acc.Name)
		}
		if acc.HasSMTP() && (acc.SMTPPort < 1 || acc.SMTPPort > 65535) {
			return fmt.Errorf("account %s: invalid SMTP_PORT", acc.Name)
		}
	}

	return nil
}

// AccountNames returns a list of all account names
func (c *Config) AccountNames() []string {
	names := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		names[i] = c.Accounts[i].Name
	}
	return names
}
