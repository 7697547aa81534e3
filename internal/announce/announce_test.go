package announce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubebot/internal/feed"
	"tubebot/internal/transport"
	logx "tubebot/pkg/logx"
)

func TestFromItem(t *testing.T) {
	t.Parallel()
	cases := []struct {
		title string
		cat   feed.Category
		url   string
	}{
		{"Talk", feed.Standard, "https://youtu.be/b"},
		{"Clip #shorts", feed.Short, "https://www.youtube.com/shorts/b"},
		{"Stream #live #shorts", feed.Live, "https://youtu.be/b"},
	}
	for _, tc := range cases {
		a := FromItem(feed.Item{ID: "b", Title: tc.title})
		assert.Equal(t, tc.cat, a.Category, tc.title)
		assert.Equal(t, tc.url, a.URL, tc.title)
		assert.Equal(t, "https://i.ytimg.com/vi/b/hqdefault.jpg", a.Thumbnail)
		assert.Equal(t, tc.cat.Color(), a.Color)
	}
}

func TestTextRendering(t *testing.T) {
	t.Parallel()
	a := FromItem(feed.Item{ID: "x1", Title: "Tom & Jerry #live"})

	assert.Equal(t, "🔴 New live stream on YouTube: <b>Tom &amp; Jerry #live</b>\nhttps://youtu.be/x1", Text(a, HTML))
	assert.Equal(t, "🔴 New live stream on YouTube: **Tom & Jerry #live**\nhttps://youtu.be/x1", Text(a, Markdown))
	assert.Equal(t, "🔴 New live stream on YouTube: Tom & Jerry #live\nhttps://youtu.be/x1", Text(a, Plain))
}

func TestParseStyle(t *testing.T) {
	t.Parallel()
	s, err := ParseStyle("")
	require.NoError(t, err)
	assert.Equal(t, StyleText, s)
	s, err = ParseStyle("card")
	require.NoError(t, err)
	assert.Equal(t, StyleCard, s)
	_, err = ParseStyle("banner")
	assert.Error(t, err)
}

func TestWebhookPayloads(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		bodies []webhookPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var p webhookPayload
		_ = json.Unmarshal(b, &p)
		mu.Lock()
		bodies = append(bodies, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := FromItem(feed.Item{ID: "s1", Title: "Quick #shorts"})

	require.NoError(t, NewWebhook(srv.URL, StyleText, srv.Client(), logx.Nop()).Deliver(context.Background(), a))
	require.NoError(t, NewWebhook(srv.URL, StyleCard, srv.Client(), logx.Nop()).Deliver(context.Background(), a))

	require.Len(t, bodies, 2)
	assert.Equal(t, "📱 New Shorts on YouTube: **Quick #shorts**\nhttps://www.youtube.com/shorts/s1", bodies[0].Content)
	assert.Empty(t, bodies[0].Embeds)

	require.Len(t, bodies[1].Embeds, 1)
	e := bodies[1].Embeds[0]
	assert.Equal(t, "Quick #shorts", e.Title)
	assert.Equal(t, "https://www.youtube.com/shorts/s1", e.URL)
	assert.Equal(t, 0x33ccff, e.Color)
	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "https://i.ytimg.com/vi/s1/hqdefault.jpg", e.Thumbnail.URL)
}

func TestWebhookRejected(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	a := FromItem(feed.Item{ID: "v", Title: "Talk"})
	err := NewWebhook(srv.URL, StyleText, srv.Client(), logx.Nop()).Deliver(context.Background(), a)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "v", de.ID)
	assert.Contains(t, err.Error(), "404")
}

func TestWebhookWithoutURL(t *testing.T) {
	t.Parallel()
	err := NewWebhook("", StyleText, nil, logx.Nop()).Deliver(context.Background(), Announcement{ID: "v"})
	assert.ErrorIs(t, err, ErrNoDestination)
}

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []string
	photos   []string
	photoErr error
}

func (f *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, to transport.ChatTarget, photoURL, _ string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.photoErr != nil {
		return transport.MessageRef{}, f.photoErr
	}
	f.photos = append(f.photos, photoURL)
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) Stop(context.Context) error { return nil }

func TestTelegramDeliver(t *testing.T) {
	t.Parallel()
	a := FromItem(feed.Item{ID: "b", Title: "Talk"})
	to := transport.ChatTarget{ChatID: -100123}

	fa := &fakeAdapter{}
	require.NoError(t, NewTelegram(fa, to, StyleText, logx.Nop()).Deliver(context.Background(), a))
	assert.Equal(t, []string{"🎥 New video on YouTube: <b>Talk</b>\nhttps://youtu.be/b"}, fa.texts)

	card := &fakeAdapter{}
	require.NoError(t, NewTelegram(card, to, StyleCard, logx.Nop()).Deliver(context.Background(), a))
	assert.Equal(t, []string{"https://i.ytimg.com/vi/b/hqdefault.jpg"}, card.photos)
	assert.Empty(t, card.texts)
}

func TestTelegramCardFallsBackToText(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{photoErr: errors.New("wrong file identifier")}
	a := FromItem(feed.Item{ID: "b", Title: "Talk"})

	require.NoError(t, NewTelegram(fa, transport.ChatTarget{ChatID: 1}, StyleCard, logx.Nop()).Deliver(context.Background(), a))
	assert.Len(t, fa.texts, 1)
}

func TestTelegramMissingDestination(t *testing.T) {
	t.Parallel()
	err := NewTelegram(&fakeAdapter{}, transport.ChatTarget{}, StyleText, logx.Nop()).Deliver(context.Background(), Announcement{ID: "x"})
	assert.ErrorIs(t, err, ErrNoDestination)
	var de *DeliveryError
	assert.True(t, errors.As(err, &de))
}

type countingAnnouncer struct{ n int }

func (c *countingAnnouncer) Deliver(context.Context, Announcement) error { c.n++; return nil }

func TestRateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	next := &countingAnnouncer{}
	lim := WithRateLimit(next, 0.001, 1)

	require.NoError(t, lim.Deliver(context.Background(), Announcement{ID: "1"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := lim.Deliver(ctx, Announcement{ID: "2"})
	assert.Error(t, err)
	assert.Equal(t, 1, next.n)

	assert.Same(t, next, WithRateLimit(next, 0, 0))
}
