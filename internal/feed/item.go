// Package feed retrieves a YouTube channel feed and turns its entries into
// Items, and classifies them by category.
package feed

import (
	"fmt"
	"net/url"
	"time"
)

// ChannelFeedURL is the public Atom feed for a channel.
func ChannelFeedURL(channelID string) string {
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}

// Item is one feed entry. Items are built by the fetcher and never mutated.
type Item struct {
	ID        string
	Title     string
	Published time.Time // zero if the feed omits it
}

// Category classifies the item by title.
func (it Item) Category() Category { return Classify(it.Title) }

// URL is the canonical watch URL for the item's category.
func (it Item) URL() string { return WatchURL(it.ID, it.Category()) }

// Thumbnail is the high-quality still YouTube serves for every video id.
func (it Item) Thumbnail() string { return ThumbnailURL(it.ID) }

func WatchURL(id string, c Category) string {
	if c == Short {
		return "https://www.youtube.com/shorts/" + id
	}
	return "https://youtu.be/" + id
}

func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", id)
}
