package apprise

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fusionn-batch/internal/config"
	"github.com/fusionn-batch/internal/notify"
	"github.com/fusionn-batch/pkg/logger"
)

// Client wraps the Apprise API.
type Client struct {
	cfg    config.AppriseConfig
	client *resty.Client
}

// NewClient creates a new Apprise client.
func NewClient(cfg config.AppriseConfig) *Client {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	return &Client{
		cfg:    cfg,
		client: client,
	}
}

// NotifyRequest is the request body for Apprise.
type NotifyRequest struct {
	Body  string `json:"body"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"` // info, success, warning, failure
	Tag   string `json:"tag,omitempty"`
}

// Send implements notify.Sink.
func (c *Client) Send(ev notify.Event) error {
	return c.Notify(ev.Title, ev.Message, appriseType(ev.Kind))
}

func appriseType(k notify.Kind) string {
	switch k {
	case notify.KindSuccess:
		return "success"
	case notify.KindError:
		return "failure"
	default:
		return "info"
	}
}

// Notify sends a notification via Apprise.
func (c *Client) Notify(title, body, notifyType string) error {
	if !c.cfg.Enabled {
		return nil
	}

	tag := c.cfg.Tag
	if tag == "" {
		tag = "all"
	}

	req := NotifyRequest{
		Title: title,
		Body:  body,
		Type:  notifyType,
		Tag:   tag,
	}

	url := fmt.Sprintf("%s/notify/%s", c.cfg.BaseURL, c.cfg.Key)

	resp, err := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(url)

	if err != nil {
		return fmt.Errorf("apprise request: %w", err)
	}

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("apprise error: %s", resp.String())
	}

	logger.Debugf("🔔 Notification sent: %s", title)
	return nil
}
