package announce

import (
	"html"
	"strings"

	"tubebot/internal/feed"
)

// Markup is the inline formatting dialect of a destination.
type Markup int

const (
	Markdown Markup = iota // Discord-style **bold**
	HTML                   // Telegram HTML parse mode
	Plain
)

func emoji(c feed.Category) string {
	switch c {
	case feed.Live:
		return "🔴"
	case feed.Short:
		return "📱"
	default:
		return "🎥"
	}
}

// Label is the human heading for a category.
func Label(c feed.Category) string {
	switch c {
	case feed.Live:
		return "New live stream on YouTube"
	case feed.Short:
		return "New Shorts on YouTube"
	default:
		return "New video on YouTube"
	}
}

// Headline is the first line of an announcement without the link.
func Headline(a Announcement, m Markup) string {
	title := strings.TrimSpace(a.Title)
	switch m {
	case HTML:
		title = "<b>" + html.EscapeString(title) + "</b>"
	case Markdown:
		title = "**" + title + "**"
	}
	return emoji(a.Category) + " " + Label(a.Category) + ": " + title
}

// Text renders the announcement as a headline followed by the watch URL.
func Text(a Announcement, m Markup) string {
	return Headline(a, m) + "\n" + a.URL
}
