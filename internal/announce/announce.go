// Package announce delivers new-item announcements to a destination.
package announce

import (
	"context"
	"errors"
	"fmt"

	"tubebot/internal/feed"
)

// ErrNoDestination means the announcer has nowhere to send to.
var ErrNoDestination = errors.New("announce destination not configured")

// Announcement is the payload for one new item.
type Announcement struct {
	Category  feed.Category
	Title     string
	ID        string
	URL       string
	Thumbnail string
	Color     int
}

// FromItem builds the announcement for a feed item.
func FromItem(it feed.Item) Announcement {
	c := it.Category()
	return Announcement{
		Category:  c,
		Title:     it.Title,
		ID:        it.ID,
		URL:       feed.WatchURL(it.ID, c),
		Thumbnail: feed.ThumbnailURL(it.ID),
		Color:     c.Color(),
	}
}

// Announcer delivers one announcement. Deliver returns only after the
// destination accepted or rejected it.
type Announcer interface {
	Deliver(ctx context.Context, a Announcement) error
}

// DeliveryError is returned when a destination rejects an announcement.
type DeliveryError struct {
	Category feed.Category
	ID       string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s %q: %v", e.Category, e.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func deliveryErr(a Announcement, err error) error {
	if err == nil {
		return nil
	}
	return &DeliveryError{Category: a.Category, ID: a.ID, Err: err}
}

// Style selects how an announcement is rendered.
type Style string

const (
	StyleText Style = "text"
	StyleCard Style = "card"
)

func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "", StyleText:
		return StyleText, nil
	case StyleCard:
		return StyleCard, nil
	default:
		return "", fmt.Errorf("unknown announce style %q", s)
	}
}
