// Package line pushes registrant notifications through the LINE Messaging API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkin-system/internal/services/notify"
	"checkin-system/utils"

	"github.com/google/uuid"
)

const pushPath = "/v2/bot/message/push"

var ErrUnauthorized = errors.New("line: channel token rejected")

type Config struct {
	BaseURL      string
	ChannelToken string
	Timeout      time.Duration
}

type Client struct {
	// baseURL is the LINE API origin, without a trailing slash.
	baseURL string

	// token is the long-lived channel access token.
	token string

	// breaker stops hammering LINE while it is failing.
	breaker *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ChannelToken == "" {
		return nil, errors.New("line: channel token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.ChannelToken,
		breaker: utils.NewCircuitBreaker("line"),
		hc: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func (c *Client) Name() string { return "line" }

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// Send pushes msg as a text message to a LINE user id.
func (c *Client) Send(ctx context.Context, contactID string, msg notify.Message) error {
	body, err := json.Marshal(pushRequest{
		To:       contactID,
		Messages: []textMessage{{Type: "text", Text: msg.Text()}},
	})
	if err != nil {
		return fmt.Errorf("line: json.Marshal: %w", err)
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.push(ctx, body)
	})
}

func (c *Client) push(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Line-Retry-Key", uuid.NewString())

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("line: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		var reply struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &reply) != nil || reply.Message == "" {
			reply.Message = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("line: push status %d: %s", resp.StatusCode, reply.Message)
	}
	return nil
}
