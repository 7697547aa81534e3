package announce

import (
	"context"

	logx "tubebot/pkg/logx"
)

// Log writes announcements to the logger instead of a chat.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{log: log.With(logx.String("comp", "announce.log"))}
}

func (l *Log) Deliver(_ context.Context, a Announcement) error {
	l.log.Info(Text(a, Plain),
		logx.String("id", a.ID),
		logx.String("category", a.Category.String()),
	)
	return nil
}
