package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scantrade/scanners"
)

func signal(sym string, kind scanners.Kind, conf float64) scanners.Signal {
	return scanners.Signal{
		ID:          "01J00000000000000000000SIG",
		ScannerID:   "momentum_rsi",
		ScannerName: "Momentum RSI",
		Symbol:      sym,
		Kind:        kind,
		Confidence:  conf,
		Price:       1234.5,
		Condition:   "RSI < 30 and price above EMA 200",
	}
}

func TestFormatSignal(t *testing.T) {
	t.Parallel()

	got := FormatSignal(signal("AAPL", scanners.Oversold, 82.25), "*")
	assert.Equal(t, "*SCANTRADE SIGNAL* 🚀\n\n*AAPL* • OVERSOLD\nPrice: $1,234.50\nConfidence: 82.2%\nSetup: RSI < 30 and price above EMA 200\n\n_Momentum RSI_", got)

	got = FormatSignal(signal("TSLA", scanners.Bearish, 70), "**")
	assert.True(t, strings.HasPrefix(got, "**SCANTRADE SIGNAL** 🔻"))
}

func TestCommaf(t *testing.T) {
	t.Parallel()
	for in, want := range map[float64]string{
		0:           "0.00",
		999.994:     "999.99",
		1000:        "1,000.00",
		1234567.891: "1,234,567.89",
		-45210.5:    "-45,210.50",
	} {
		assert.Equal(t, want, commaf(in), in)
	}
}

func TestDiscord(t *testing.T) {
	t.Parallel()

	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	d.now = func() time.Time { return time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC) }
	require.NoError(t, d.Notify(context.Background(), signal("NVDA", scanners.Bullish, 91)))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "🚀 Signal Detected: NVDA", e.Title)
	assert.Equal(t, colorGreen, e.Color)
	assert.Contains(t, e.Description, "**NVDA** • BULLISH")
	assert.Equal(t, "2025-06-02T13:00:00Z", e.Timestamp)
	assert.Equal(t, "ScanTrade | Momentum RSI", e.Footer.Text)
	assert.Equal(t, colorRed, embedColor(scanners.Overbought))
	assert.Equal(t, colorGrey, embedColor(scanners.Neutral))
}

func TestDiscordError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Notify(context.Background(), signal("NVDA", scanners.Bullish, 91))
	assert.EqualError(t, err, "discord returned status: 429")
}

func TestTelegram(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"ScanTrade","username":"scantrade_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
			mu.Lock()
			form = map[string]string{
				"chat_id":    r.PostForm.Get("chat_id"),
				"text":       r.PostForm.Get("text"),
				"parse_mode": r.PostForm.Get("parse_mode"),
			}
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := newTelegram("TOKEN", srv.URL+"/bot%s/%s", 42, srv.Client())
	require.NoError(t, err)
	require.NoError(t, tg.Notify(context.Background(), signal("SPY", scanners.Breakout, 75)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "42", form["chat_id"])
	assert.Equal(t, "Markdown", form["parse_mode"])
	assert.Contains(t, form["text"], "*SPY* • BREAKOUT")

	_, err = newTelegram("TOKEN", srv.URL+"/bot%s/%s", 0, srv.Client())
	assert.ErrorContains(t, err, "chat id is required")
}

type recorder struct {
	name string
	err  error
	mu   sync.Mutex
	got  []scanners.Signal
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Notify(_ context.Context, sig scanners.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, sig)
	return r.err
}

func (r *recorder) symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.got {
		out = append(out, s.Symbol)
	}
	return out
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	ok := &recorder{name: "ok"}
	bad := &recorder{name: "bad", err: errors.New("boom")}
	d := NewDispatcher(Config{MinConfidence: 70, Cooldown: time.Hour}, zerolog.Nop(), bad, ok)
	now := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	go d.Run(context.Background())

	assert.True(t, d.Publish(signal("AAPL", scanners.Bullish, 80)))
	assert.False(t, d.Publish(signal("AAPL", scanners.Bullish, 85)), "repeat inside cooldown")
	assert.True(t, d.Publish(signal("AAPL", scanners.Bearish, 80)), "different kind")
	assert.False(t, d.Publish(signal("MSFT", scanners.Bullish, 69.9)), "below confidence floor")
	now = now.Add(time.Hour)
	assert.True(t, d.Publish(signal("AAPL", scanners.Bullish, 80)), "cooldown elapsed")

	d.Close()
	assert.Equal(t, []string{"AAPL", "AAPL", "AAPL"}, ok.symbols(), "a failing notifier does not stop the others")
	assert.Len(t, bad.symbols(), 3)
	assert.False(t, d.Publish(signal("QQQ", scanners.Bullish, 99)), "closed")
}

func TestDispatcherQueueFull(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(Config{QueueSize: 1}, zerolog.Nop(), &recorder{name: "r"})
	assert.True(t, d.Publish(signal("A", scanners.Bullish, 50)))
	assert.False(t, d.Publish(signal("B", scanners.Bullish, 50)))

	go d.Run(context.Background())
	d.Close()
}

func TestDispatcherCloseWithoutRun(t *testing.T) {
	t.Parallel()

	r := &recorder{name: "r"}
	d := NewDispatcher(Config{}, zerolog.Nop(), r)
	require.True(t, d.Publish(signal("A", scanners.Bullish, 50)))
	require.True(t, d.Publish(signal("B", scanners.Bullish, 50)))

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked without Run")
	}
	assert.Equal(t, []string{"A", "B"}, r.symbols())

	// Run after Close and a second Close both return at once.
	d.Run(context.Background())
	d.Close()
	assert.Len(t, r.symbols(), 2)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	d, err := Build(Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, d.Publish(signal("A", scanners.Bullish, 99)), "no channels configured")
	assert.False(t, Config{}.Enabled())

	d, err = Build(Config{DiscordWebhookURL: "http://127.0.0.1:0/hook"}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, d.notifiers, 1)
	assert.Equal(t, "discord", d.notifiers[0].Name())

	_, err = Build(Config{TelegramToken: "x"}, zerolog.Nop())
	assert.ErrorContains(t, err, "chat id is required")
}
