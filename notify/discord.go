package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rustyeddy/scantrade/scanners"
)

const (
	colorGreen = 5763719
	colorRed   = 15548997
	colorGrey  = 9807270
)

// Discord posts signals to a channel webhook as an embed.
type Discord struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
	Timestamp string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func embedColor(k scanners.Kind) int {
	switch kindEmoji(k) {
	case "🚀":
		return colorGreen
	case "🔻":
		return colorRed
	}
	return colorGrey
}

func (d *Discord) Notify(ctx context.Context, sig scanners.Signal) error {
	e := discordEmbed{
		Title:       fmt.Sprintf("%s Signal Detected: %s", kindEmoji(sig.Kind), sig.Symbol),
		Description: FormatSignal(sig, "**"),
		Color:       embedColor(sig.Kind),
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	e.Footer.Text = "ScanTrade | " + sig.ScannerName

	data, err := json.Marshal(discordPayload{Username: "ScanTrade", Embeds: []discordEmbed{e}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}
