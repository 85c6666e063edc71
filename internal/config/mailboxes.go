package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// MailboxAccount describes one polled inbound mailbox.
type MailboxAccount struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"` // imap, imaps or graph
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	PasswordEnv string `mapstructure:"password_env"`
	Folder      string `mapstructure:"folder"`
	// Address is the mailbox owner for graph accounts and the delivered-to
	// address added to every fetched message.
	Address string `mapstructure:"address"`
}

type mailboxFile struct {
	Mailboxes []MailboxAccount `mapstructure:"mailboxes"`
}

// LoadMailboxes reads the mailbox list from a YAML, JSON or TOML file.
func LoadMailboxes(path string) ([]MailboxAccount, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read mailboxes file: %w", err)
	}

	var file mailboxFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode mailboxes file: %w", err)
	}

	for i := range file.Mailboxes {
		acc := &file.Mailboxes[i]
		acc.Type = strings.ToLower(strings.TrimSpace(acc.Type))
		if acc.Password == "" && acc.PasswordEnv != "" {
			acc.Password = os.Getenv(acc.PasswordEnv)
		}
		if acc.Name == "" {
			acc.Name = firstNonEmpty(acc.Address, acc.Username, fmt.Sprintf("mailbox-%d", i+1))
		}
		if err := acc.validate(); err != nil {
			return nil, fmt.Errorf("mailbox %s: %w", acc.Name, err)
		}
	}
	return file.Mailboxes, nil
}

func (m MailboxAccount) validate() error {
	switch m.Type {
	case "imap", "imaps":
		if m.Host == "" || m.Username == "" {
			return fmt.Errorf("imap mailbox requires host and username")
		}
	case "graph":
		if m.Address == "" {
			return fmt.Errorf("graph mailbox requires address")
		}
	default:
		return fmt.Errorf("unsupported mailbox type %q", m.Type)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
