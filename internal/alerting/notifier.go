package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trustscan/internal/logging"
	"trustscan/internal/storage"
)

// Notification carries a committed signal and its alert context.
type Notification struct {
	Record        storage.SignalRecord
	PriceEdgePct  string
	VolumeRatio   string
	Channels      []string
	AdditionalMsg string
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Component(logger, "alert_telegram"),
	}
}

// Notify posts the rendered text to sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Uint64("sequence", note.Record.Sequence).
		Str("stock", note.Record.StockName).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("signal alert sent (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	rec := note.Record
	builder := strings.Builder{}
	builder.WriteString("[TrustScan Breakout]\n")
	builder.WriteString(fmt.Sprintf("Stock: %s (%s)\n", rec.StockName, rec.Symbol))
	builder.WriteString(fmt.Sprintf("Price: %s\n", rec.Price.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Strength: %d/10\n", rec.Strength))
	if note.PriceEdgePct != "" {
		builder.WriteString(fmt.Sprintf("Above high: %s%%\n", note.PriceEdgePct))
	}
	if note.VolumeRatio != "" {
		builder.WriteString(fmt.Sprintf("Volume: %sx average\n", note.VolumeRatio))
	}
	builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", rec.ObservedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Ledger #%d %s\n", rec.Sequence, rec.Fingerprint))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
