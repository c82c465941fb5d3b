package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
)

var _ ports.Notifier = (*Slack)(nil)

// Slack envía alertas a un incoming webhook.
type Slack struct {
	webhookURL string
	enabled    bool
	http       *http.Client
}

// NewSlack crea el notificador. Queda desactivado si enabled es false o la URL está vacía.
func NewSlack(enabled bool, webhookURL string) *Slack {
	s := &Slack{
		webhookURL: webhookURL,
		enabled:    enabled && webhookURL != "",
		http:       &http.Client{Timeout: 10 * time.Second},
	}
	if !s.enabled {
		slog.Info("slack notifications disabled")
	}
	return s
}

// Enabled indica si el notificador enviará algo.
func (s *Slack) Enabled() bool {
	return s.enabled
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
	URL  string    `json:"url"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Blocks []slackBlock `json:"blocks"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

// NotifyAlert hace POST del mensaje. Un status distinto de 200 es un error.
func (s *Slack) NotifyAlert(ctx context.Context, a domain.Alert) error {
	if !s.enabled {
		return nil
	}

	body, err := json.Marshal(buildSlackPayload(a))
	if err != nil {
		return fmt.Errorf("slack.NotifyAlert: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack.NotifyAlert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack.NotifyAlert: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack.NotifyAlert: status %d: %s", resp.StatusCode, string(msg))
	}

	slog.Debug("alert sent to slack", "alert_id", a.ID)
	return nil
}

func buildSlackPayload(a domain.Alert) slackPayload {
	color, emoji := severityStyle(a.Severity())

	bullets := make([]string, 0, maxReasonsShown)
	for _, r := range topReasons(a.Reasons) {
		bullets = append(bullets, "• "+r)
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: emoji + " Suspicious Activity Detected"}},
		{Type: "section", Fields: []slackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("*Score:*\n%.1f/10", a.Score)},
			{Type: "mrkdwn", Text: fmt.Sprintf("*Wallet:*\n`%s`", shortAddr(a.Wallet))},
		}},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: "*Market:*\n" + a.MarketTitle}},
		{Type: "section", Fields: []slackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("*Trade:*\n%s $%.2f", a.Trade.Side, a.Trade.ValueUSD)},
			{Type: "mrkdwn", Text: fmt.Sprintf("*Price:*\n$%g", a.Trade.Price)},
		}},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: "*Red Flags:*\n" + strings.Join(bullets, "\n")}},
	}
	if a.MarketSlug != "" {
		blocks = append(blocks, slackBlock{Type: "actions", Elements: []slackElement{{
			Type: "button",
			Text: slackText{Type: "plain_text", Text: "View on Polymarket"},
			URL:  marketURL(a.MarketSlug),
		}}})
	}

	return slackPayload{Attachments: []slackAttachment{{Color: color, Blocks: blocks}}}
}

func severityStyle(s domain.Severity) (color, emoji string) {
	switch s {
	case domain.SeverityCritical:
		return "#ff0000", "🚨"
	case domain.SeverityHigh:
		return "#ffa500", "⚠️"
	default:
		return "#0099ff", "ℹ️"
	}
}
