package feed

import "strings"

// Category is the closed set of announcement kinds.
type Category int

const (
	Standard Category = iota
	Short
	Live
)

func (c Category) String() string {
	switch c {
	case Live:
		return "live"
	case Short:
		return "short"
	default:
		return "standard"
	}
}

// Color is the accent colour used by card-style announcements.
func (c Category) Color() int {
	switch c {
	case Live:
		return 0xff3333
	case Short:
		return 0x33ccff
	default:
		return 0xffcc00
	}
}

// Classify maps a title to its category. Hashtags are matched as
// case-insensitive substrings; #live wins over #shorts.
func Classify(title string) Category {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "#live"):
		return Live
	case strings.Contains(t, "#shorts"):
		return Short
	default:
		return Standard
	}
}
