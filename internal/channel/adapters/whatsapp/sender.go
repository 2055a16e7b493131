// Package whatsapp bridges the Twilio WhatsApp channel: an inbound
// webhook for user messages and the Messages API for outbound sends.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.twilio.com"

// Sender pushes messages through Twilio's message-creation API. Replies
// are not returned in the webhook response body; each segment is an
// independent API call.
type Sender struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
}

// NewSender creates a Twilio sender. fromNumber is the channel-tagged
// sender address, e.g. "whatsapp:+14155238886".
func NewSender(log *slog.Logger, accountSID, authToken, fromNumber string) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With(slog.String("adapter", "whatsapp")),
		baseURL:    defaultAPIBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
	}
}

// SendText implements channel.Sender.
func (s *Sender) SendText(ctx context.Context, target, text string) error {
	form := url.Values{}
	form.Set("From", s.fromNumber)
	form.Set("To", target)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
