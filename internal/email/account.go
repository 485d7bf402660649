package email

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/config"
	"github.com/brandon/mailsweep/pkg/types"
)

// AccountManager manages multiple email accounts
type AccountManager struct {
	accounts map[string]*Account
}

// Account pairs an account's configuration with the session handle scans
// and deletes connect through. SMTP is nil when outgoing mail is not set up.
type Account struct {
	Config  *config.AccountConfig
	Session *types.Session
	SMTP    *SMTPClient
}

// NewAccountManager creates a new account manager
func NewAccountManager(cfg *config.Config, logger *logrus.Logger) (*AccountManager, error) {
	manager := &AccountManager{
		accounts: make(map[string]*Account),
	}

	for i := range cfg.Accounts {
		accCfg := &cfg.Accounts[i]

		account := &Account{
			Config:  accCfg,
			Session: accCfg.Session(),
		}

		if accCfg.HasSMTP() {
			smtpClient, err := NewSMTPClient(accCfg)
			if err != nil {
				return nil, err
			}
			smtpClient.SetLogger(logger)
			account.SMTP = smtpClient
		}

		manager.accounts[accCfg.Name] = account
	}

	return manager, nil
}

// GetAccount returns an account by name
func (m *AccountManager) GetAccount(name string) (*Account, error) {
	account, exists := m.accounts[name]
	if !exists {
		return nil, fmt.Errorf("account not found: %s", name)
	}
	return account, nil
}

// ListAccounts returns all account names, sorted
func (m *AccountManager) ListAccounts() []string {
	names := make([]string, 0, len(m.accounts))
	for name := range m.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
