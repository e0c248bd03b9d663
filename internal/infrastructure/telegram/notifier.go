package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Sahayak/internal/domain"
	"Sahayak/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

var levelIcons = map[domain.NotificationLevel]string{
	domain.LevelInfo:    "ℹ️",
	domain.LevelSuccess: "✅",
	domain.LevelError:   "❌",
}

// Notifier forwards assignment notifications to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// Notify posts the notification as a Markdown message.
func (n *Notifier) Notify(ctx context.Context, note domain.Notification) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Message(note))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// Message renders a notification as Telegram Markdown.
func Message(note domain.Notification) string {
	var b strings.Builder
	if icon, ok := levelIcons[note.Level]; ok {
		b.WriteString(icon)
		b.WriteString(" ")
	}
	b.WriteString("*")
	b.WriteString(escape(note.Title))
	b.WriteString("*")
	if note.Detail != "" {
		b.WriteString("\n")
		b.WriteString(escape(note.Detail))
	}
	if note.JobID != "" {
		b.WriteString("\nAssignment: `")
		b.WriteString(strings.ReplaceAll(note.JobID, "`", ""))
		b.WriteString("`")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
