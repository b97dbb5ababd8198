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

// TeamsHandler posts a packet-ready message to a Microsoft Teams
// incoming webhook.
type TeamsHandler struct {
	webhookURL string
	logger     *zap.Logger
	httpClient *http.Client
}

type teamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Summary    string         `json:"summary"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title,omitempty"`
	Text       string         `json:"text,omitempty"`
	Sections   []teamsSection `json:"sections,omitempty"`
}

type teamsSection struct {
	ActivityTitle string `json:"activityTitle,omitempty"`
	Text          string `json:"text,omitempty"`
	Markdown      bool   `json:"markdown,omitempty"`
}

// NewTeamsHandler creates a Microsoft Teams webhook channel.
func NewTeamsHandler(webhookURL string, logger *zap.Logger) *TeamsHandler {
	return &TeamsHandler{
		webhookURL: webhookURL,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the channel's name for logging.
func (h *TeamsHandler) Name() string { return "teams" }

// Send posts msg to the configured webhook.
func (h *TeamsHandler) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(teamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		Summary:    msg.Subject,
		ThemeColor: "0078D4",
		Title:      msg.Subject,
		Sections: []teamsSection{{
			ActivityTitle: "Compliance Navigator",
			Text:          msg.Body,
			Markdown:      true,
		}},
	})
	if err != nil {
		return fmt.Errorf("marshalling teams message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building teams request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending teams message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("teams webhook returned status %d", resp.StatusCode)
	}
	return nil
}
