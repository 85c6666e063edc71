package mail

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
)

// Factory resolves the fetcher for a mailbox account type.
type Factory struct {
	fetchers map[string]Fetcher
}

// NewFactory registers fetchers under their account types.
func NewFactory(imapFetcher Fetcher, graphFetcher Fetcher) *Factory {
	f := &Factory{fetchers: make(map[string]Fetcher)}
	if imapFetcher != nil {
		f.fetchers["imap"] = imapFetcher
		f.fetchers["imaps"] = imapFetcher
	}
	if graphFetcher != nil {
		f.fetchers["graph"] = graphFetcher
	}
	return f
}

// FetcherFor returns the fetcher for account.
func (f *Factory) FetcherFor(account config.MailboxAccount) (Fetcher, error) {
	fetcher, ok := f.fetchers[strings.ToLower(strings.TrimSpace(account.Type))]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for mailbox type %q", account.Type)
	}
	return fetcher, nil
}

// GraphConfigured reports whether Graph credentials are present.
func GraphConfigured(cfg config.GraphConfig) bool {
	return cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != ""
}

// NewSender picks the outbound provider: an explicit MAIL_PROVIDER wins,
// otherwise Resend when an API key is set, otherwise the log sender.
func NewSender(cfg config.MailConfig, graph *GraphClient, logger *zap.Logger) (Sender, error) {
	provider := cfg.Provider
	if provider == "" {
		if cfg.ResendAPIKey != "" {
			provider = "resend"
		} else {
			provider = "log"
		}
	}
	switch provider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER=resend requires RESEND_API_KEY")
		}
		return NewResendSender(cfg.ResendAPIKey, cfg.ResendURL, cfg.HTTPTimeout), nil
	case "graph":
		if graph == nil {
			return nil, fmt.Errorf("MAIL_PROVIDER=graph requires MICROSOFT_* credentials")
		}
		return NewGraphSender(graph, cfg.From), nil
	case "log":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", provider)
	}
}

// NewFactoryFromConfig wires the default fetchers.
func NewFactoryFromConfig(graph *GraphClient, logger *zap.Logger) *Factory {
	var graphFetcher Fetcher
	if graph != nil {
		graphFetcher = NewGraphFetcher(graph, logger)
	}
	return NewFactory(NewIMAPFetcher(WithIMAPLogger(logger)), graphFetcher)
}
