package announce

import (
	"context"
	"errors"

	"tubebot/internal/transport"
	logx "tubebot/pkg/logx"
)

// Telegram posts announcements to a chat through a transport adapter.
type Telegram struct {
	adapter transport.Adapter
	to      transport.ChatTarget
	style   Style
	log     logx.Logger
}

func NewTelegram(adapter transport.Adapter, to transport.ChatTarget, style Style, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{adapter: adapter, to: to, style: style, log: log.With(logx.String("comp", "announce.telegram"))}
}

func (t *Telegram) Deliver(ctx context.Context, a Announcement) error {
	if t.adapter == nil || t.to.ChatID == 0 {
		return deliveryErr(a, ErrNoDestination)
	}
	opt := &transport.SendOptions{ParseMode: "HTML"}

	if t.style == StyleCard && a.Thumbnail != "" {
		caption := Text(a, HTML)
		_, err := t.adapter.SendPhoto(ctx, t.to, a.Thumbnail, caption, opt)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return deliveryErr(a, err)
		}
		// Thumbnails are sometimes not ready right after upload.
		t.log.Warn("photo announce failed, falling back to text", logx.String("id", a.ID), logx.Err(err))
	}

	_, err := t.adapter.SendText(ctx, t.to, Text(a, HTML), opt)
	return deliveryErr(a, err)
}
