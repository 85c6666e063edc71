package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

const graphScope = "https://graph.microsoft.com/.default"

// GraphClient talks to Microsoft Graph with an app-only token obtained via
// the client-credentials flow.
type GraphClient struct {
	baseURL string
	tokens  oauth2.TokenSource
	http     *http.Client
	pageTop  int
	maxPages int
}

// NewGraphClient builds a client. The token is fetched lazily and cached.
func NewGraphClient(cfg config.GraphConfig, timeout time.Duration) *GraphClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}

	credentials := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}
	base := &http.Client{Timeout: timeout}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	tokens := credentials.TokenSource(tokenCtx)

	client := oauth2.NewClient(tokenCtx, tokens)
	client.Timeout = timeout
	return &GraphClient{baseURL: baseURL, tokens: tokens, http: client, pageTop: 50, maxPages: 40}
}

// Authenticate obtains (or reuses) the app token.
func (c *GraphClient) Authenticate(_ context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("graph token: %w", err)
	}
	return nil
}

type graphAddress struct {
	EmailAddress struct {
		Name    string `json:"name,omitempty"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func newGraphAddress(address string) graphAddress {
	var a graphAddress
	a.EmailAddress.Address = address
	return a
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	ID               string         `json:"id,omitempty"`
	Subject          string         `json:"subject"`
	Body             graphBody      `json:"body"`
	From             *graphAddress  `json:"from,omitempty"`
	ToRecipients     []graphAddress `json:"toRecipients"`
	CcRecipients     []graphAddress `json:"ccRecipients,omitempty"`
	ReplyTo          []graphAddress `json:"replyTo,omitempty"`
	ReceivedDateTime *time.Time     `json:"receivedDateTime,omitempty"`
	ConversationID   string         `json:"conversationId,omitempty"`
}

// SendMail posts a message from the given mailbox.
func (c *GraphClient) SendMail(ctx context.Context, from string, msg graphMessage) error {
	payload := map[string]any{"message": msg, "saveToSentItems": true}
	endpoint := fmt.Sprintf("%s/users/%s/sendMail", c.baseURL, url.PathEscape(from))
	return c.do(ctx, http.MethodPost, endpoint, payload, nil)
}

// ListUnread returns unread messages received at or after since, newest
// first, following @odata.nextLink until the listing is exhausted.
func (c *GraphClient) ListUnread(ctx context.Context, mailbox string, since time.Time) ([]graphMessage, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("isRead eq false and receivedDateTime ge %s", since.UTC().Format(time.RFC3339)))
	query.Set("$top", fmt.Sprintf("%d", c.pageTop))
	query.Set("$orderby", "receivedDateTime desc")
	endpoint := fmt.Sprintf("%s/users/%s/messages?%s", c.baseURL, url.PathEscape(mailbox), query.Encode())

	var messages []graphMessage
	for pages := 0; endpoint != ""; pages++ {
		if pages == c.maxPages {
			return nil, fmt.Errorf("graph listing for %s exceeded %d pages", mailbox, c.maxPages)
		}
		var page struct {
			Value    []graphMessage `json:"value"`
			NextLink string         `json:"@odata.nextLink"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		messages = append(messages, page.Value...)
		endpoint = page.NextLink
	}
	return messages, nil
}

// MarkRead flags a message read.
func (c *GraphClient) MarkRead(ctx context.Context, mailbox, id string) error {
	endpoint := fmt.Sprintf("%s/users/%s/messages/%s", c.baseURL, url.PathEscape(mailbox), url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, endpoint, map[string]any{"isRead": true}, nil)
}

func (c *GraphClient) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph %s returned %d: %s", method, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GraphSender delivers outbound mail through a Graph mailbox.
type GraphSender struct {
	client *GraphClient
	from   string
}

// NewGraphSender builds a sender sending as from.
func NewGraphSender(client *GraphClient, from string) *GraphSender {
	return &GraphSender{client: client, from: from}
}

func (s *GraphSender) Name() string { return "graph" }

// Authenticate lets the delivery worker fail the batch early on bad credentials.
func (s *GraphSender) Authenticate(ctx context.Context) error {
	return s.client.Authenticate(ctx)
}

func (s *GraphSender) Send(ctx context.Context, msg Message) error {
	out := graphMessage{Subject: msg.Subject, Body: graphBody{ContentType: "Text", Content: msg.Text}}
	if msg.HTML != "" {
		out.Body = graphBody{ContentType: "HTML", Content: msg.HTML}
	}
	for _, to := range msg.To {
		out.ToRecipients = append(out.ToRecipients, newGraphAddress(to))
	}
	for _, cc := range msg.Cc {
		out.CcRecipients = append(out.CcRecipients, newGraphAddress(cc))
	}
	if msg.ReplyTo != "" {
		out.ReplyTo = []graphAddress{newGraphAddress(msg.ReplyTo)}
	}
	return s.client.SendMail(ctx, senderAddress(s.from), out)
}

// senderAddress strips a display name: "Desk <desk@x>" -> "desk@x".
func senderAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}

// GraphFetcher polls Graph mailboxes for unread messages.
type GraphFetcher struct {
	client *GraphClient
	logger *zap.Logger
}

// NewGraphFetcher builds a fetcher.
func NewGraphFetcher(client *GraphClient, logger *zap.Logger) *GraphFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphFetcher{client: client, logger: logger}
}

func (f *GraphFetcher) Name() string { return "graph" }

func (f *GraphFetcher) Fetch(ctx context.Context, account config.MailboxAccount, since time.Time, handle Handler) (FetchStats, error) {
	var stats FetchStats
	if handle == nil {
		return stats, fmt.Errorf("graph fetcher requires a handler")
	}
	if account.Address == "" {
		return stats, fmt.Errorf("graph mailbox %s missing address", account.Name)
	}

	messages, err := f.client.ListUnread(ctx, account.Address, since)
	if err != nil {
		return stats, fmt.Errorf("graph list %s: %w", account.Address, err)
	}

	for _, gm := range messages {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Fetched++
		msg := toInboundMessage(gm)
		msg.To = withDeliveredTo(msg.To, account.Address)

		if err := handle(ctx, msg); err != nil {
			f.logger.Warn("graph message left unread",
				zap.String("mailbox", account.Name), zap.String("message_id", gm.ID), zap.Error(err))
			stats.Failed++
			continue
		}
		stats.Handled++
		if err := f.client.MarkRead(ctx, account.Address, gm.ID); err != nil {
			f.logger.Warn("graph mark read failed",
				zap.String("mailbox", account.Name), zap.String("message_id", gm.ID), zap.Error(err))
		}
	}
	return stats, nil
}

func toInboundMessage(gm graphMessage) domain.InboundMessage {
	msg := domain.InboundMessage{Subject: gm.Subject, ThreadID: gm.ConversationID}
	if gm.ReceivedDateTime != nil {
		msg.ReceivedAt = gm.ReceivedDateTime.UTC()
	}
	if gm.From != nil {
		msg.From = strings.TrimSpace(gm.From.EmailAddress.Address)
		msg.FromName = strings.TrimSpace(gm.From.EmailAddress.Name)
	}
	for _, to := range gm.ToRecipients {
		msg.To = append(msg.To, strings.TrimSpace(to.EmailAddress.Address))
	}
	for _, cc := range gm.CcRecipients {
		msg.To = append(msg.To, strings.TrimSpace(cc.EmailAddress.Address))
	}
	if strings.EqualFold(gm.Body.ContentType, "html") {
		msg.Body = HTMLToText(gm.Body.Content)
	} else {
		msg.Body = strings.TrimSpace(gm.Body.Content)
	}
	return msg
}
