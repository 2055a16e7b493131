package whatsapp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/enlaceai/enlace/internal/channel"
)

// Processor runs one conversation turn.
type Processor interface {
	Process(ctx context.Context, userID, text string) (channel.Result, error)
}

// WebhookHandler receives Twilio's inbound-message form posts. The user
// identity is the channel-tagged From address ("whatsapp:+123...").
type WebhookHandler struct {
	logger    *slog.Logger
	processor Processor
	sender    channel.Sender
	authToken string
}

// NewWebhookHandler creates the webhook handler. When authToken is
// non-empty, inbound requests must carry a valid X-Twilio-Signature.
func NewWebhookHandler(log *slog.Logger, processor Processor, sender channel.Sender, authToken string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:    log.With(slog.String("handler", "whatsapp_webhook")),
		processor: processor,
		sender:    sender,
		authToken: authToken,
	}
}

// Register registers the webhook route.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/whatsapp", h.Handle)
}

// Handle processes one inbound message. Replies go out through the
// message-creation API, not the response body; the webhook is always
// acknowledged with 200 once delivery has been attempted, whatever the
// send outcome.
func (h *WebhookHandler) Handle(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "read form")
	}
	if h.authToken != "" {
		signature := c.Request().Header.Get("X-Twilio-Signature")
		if !ValidateSignature(h.authToken, requestURL(c.Request()), form, signature) {
			h.logger.Warn("invalid webhook signature")
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	body := form.Get("Body")
	from := form.Get("From")
	h.logger.Info("inbound received",
		slog.String("from", from), slog.Int("body_len", len(body)))

	ctx := c.Request().Context()
	res, procErr := h.processor.Process(ctx, from, body)
	_ = channel.Deliver(ctx, h.logger, h.sender, from, res, procErr)

	return c.String(http.StatusOK, "OK")
}

// requestURL rebuilds the public URL Twilio signed, honoring the proxy
// protocol header.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Host
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	return strings.Join([]string{scheme, "://", host, uri}, "")
}
