package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SlackHandler posts a packet-ready message to an incoming webhook.
type SlackHandler struct {
	webhookURL string
	logger     *zap.Logger
	httpClient *http.Client
}

// slackMessage is the minimal incoming-webhook payload shape.
type slackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color     string `json:"color,omitempty"`
	Text      string `json:"text,omitempty"`
	Footer    string `json:"footer,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// NewSlackHandler creates a Slack webhook channel.
func NewSlackHandler(webhookURL string, logger *zap.Logger) *SlackHandler {
	return &SlackHandler{
		webhookURL: webhookURL,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the channel's name for logging.
func (h *SlackHandler) Name() string { return "slack" }

// Send posts msg to the configured webhook.
func (h *SlackHandler) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(slackMessage{
		Text: msg.Subject,
		Attachments: []slackAttachment{{
			Color:     "#36a64f",
			Text:      msg.Body,
			Footer:    "Compliance Navigator",
			Timestamp: time.Now().Unix(),
		}},
	})
	if err != nil {
		return fmt.Errorf("marshalling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
