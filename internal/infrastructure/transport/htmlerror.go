package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const genericErrorMessage = "request failed"

// errorMessage picks a human-readable message out of an error body.
// JSON bodies win, then HTML error pages (gateways and proxies emit those),
// then the status text.
func errorMessage(status int, contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if msg := jsonMessage(trimmed); msg != "" {
		return msg
	}
	if strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		if msg := htmlMessage(trimmed); msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return genericErrorMessage
}

func jsonMessage(body []byte) string {
	if len(body) == 0 || body[0] != '{' {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "error_message", "Message"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func htmlMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"h1", "title", "body"} {
		text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
		if text != "" {
			if len(text) > 200 {
				text = text[:200]
			}
			return text
		}
	}
	return ""
}
