package notifications

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vigilant-snatch-go/internal/config"
)

const telegramBaseURL = "https://api.telegram.org"

// TelegramNotifier delivers events to a Telegram chat. Delivery runs on its
// own goroutine behind a buffered queue; when the queue is full, events are
// dropped rather than ever blocking the watch loop.
type TelegramNotifier struct {
	client   *resty.Client
	token    string
	chatID   string
	minLevel Severity
	logger   *zap.Logger
	queue    chan Event
	done     chan struct{}
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates the notifier and starts its delivery worker.
func NewTelegramNotifier(cfg *config.Telegram, logger *zap.Logger) *TelegramNotifier {
	n := &TelegramNotifier{
		client:   resty.New().SetBaseURL(telegramBaseURL),
		token:    cfg.Token,
		chatID:   cfg.ChatID,
		minLevel: ParseSeverity(cfg.Level),
		logger:   logger,
		queue:    make(chan Event, 64),
		done:     make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify enqueues an event for delivery. It never blocks.
func (n *TelegramNotifier) Notify(event Event) {
	if event.Severity < n.minLevel {
		return
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Warn("Notification queue full, dropping event", zap.String("title", event.Title))
	}
}

// Close stops the delivery worker after draining queued events.
func (n *TelegramNotifier) Close() {
	close(n.queue)
	<-n.done
}

func (n *TelegramNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		n.send(event)
	}
}

func (n *TelegramNotifier) send(event Event) {
	text := fmt.Sprintf("%s\n%s", event.Title, event.Message)

	resp, err := n.client.R().
		SetBody(map[string]string{
			"chat_id": n.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", n.token))
	if err != nil {
		n.logger.Warn("Failed to send telegram notification", zap.Error(err))
		return
	}
	if resp.IsError() {
		n.logger.Warn("Telegram rejected notification",
			zap.String("status", resp.Status()),
			zap.String("body", resp.String()))
	}
}
