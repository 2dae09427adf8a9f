package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omarkhalifa/laundryops-backend/pkg/config"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
)

const (
	defaultEmailBaseURL       = "https://api.sendgrid.com/v3"
	mailSendPath              = "/mail/send"
	errorBodyReadLimit  int64 = 1024
)

// Sender delivers portal access codes to customers over the channel they chose.
type Sender interface {
	SendAccessCode(ctx context.Context, channel enums.PortalChannel, contact, displayName, code string) error
}

// Client sends transactional email through SendGrid and SMS through the
// configured gateway.
type Client struct {
	httpClient   *http.Client
	cfg          config.NotifyConfig
	emailBaseURL string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEmailBaseURL overrides the SendGrid base URL.
func WithEmailBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.emailBaseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds the notification client from config.
func NewClient(cfg config.NotifyConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := &Client{
		cfg:          cfg,
		emailBaseURL: defaultEmailBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client
}

// SendAccessCode routes the code to email or SMS based on the channel.
func (c *Client) SendAccessCode(ctx context.Context, channel enums.PortalChannel, contact, displayName, code string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "notify client not configured")
	}
	if strings.TrimSpace(contact) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact is required")
	}
	if strings.TrimSpace(code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}

	switch channel {
	case enums.PortalChannelEmail:
		return c.sendEmailCode(ctx, contact, displayName, code)
	case enums.PortalChannelSMS:
		return c.sendSMSCode(ctx, contact, code)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported channel %q", channel))
	}
}

func (c *Client) sendEmailCode(ctx context.Context, to, displayName, code string) error {
	if c.cfg.SendgridAPIKey == "" || c.cfg.SendgridFrom == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid is not configured")
	}

	greeting := "Hello"
	if strings.TrimSpace(displayName) != "" {
		greeting = "Hello " + strings.TrimSpace(displayName)
	}

	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": c.cfg.SendgridFrom, "name": c.cfg.SMSSenderName},
		"subject": "Your delivery tracking code",
		"content": []map[string]string{
			{
				"type":  "text/plain",
				"value": fmt.Sprintf("%s,\n\nYour tracking access code is %s. It expires in 10 minutes.", greeting, code),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.emailBaseURL+mailSendPath, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build mail request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SendgridAPIKey)

	return c.execute(req, "mail send")
}

func (c *Client) sendSMSCode(ctx context.Context, to, code string) error {
	if c.cfg.SMSGatewayURL == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "sms gateway is not configured")
	}

	payload := map[string]string{
		"to":     to,
		"sender": c.cfg.SMSSenderName,
		"body":   fmt.Sprintf("Your %s tracking code is %s. It expires in 10 minutes.", c.cfg.SMSSenderName, code),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal sms payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SMSGatewayURL, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build sms request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.SMSGatewayKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.SMSGatewayKey)
	}

	return c.execute(req, "sms send")
}

func (c *Client) execute(req *http.Request, action string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+action+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), action+" failed")
	}
	return nil
}
