package notifications

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"folio/internal/config"
)

const userAgent = "folio/0.1"

// Service publishes messages.
type Service interface {
	Publish(ctx context.Context, msg Message) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventWorkDetails:         cfg.Notifications.Lookup,
			EventAcquisitionComplete: cfg.Notifications.Acquisition,
			EventFavorites:           false,
			EventError:               cfg.Notifications.Errors,
			EventTest:                true,
		},
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, msg Message) error {
	if !n.enabled[msg.Event] {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, Message{
		Event:    EventTest,
		Title:    "folio - Test",
		Body:     "Notification system test",
		Tags:     tagsFor(EventTest),
		Priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, msg Message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", headerValue(msg.Title))
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}
	if msg.Attach != "" {
		req.Header.Set("Attach", msg.Attach)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// headerValue RFC 2047 encodes non-ASCII titles.
func headerValue(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] >= 0x80 {
			return mime.QEncoding.Encode("utf-8", value)
		}
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Message) error { return nil }
func (noopService) TestNotification(context.Context) error { return nil }
