package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"barber_queue/internal/config"
	"barber_queue/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browserSubscription генерирует ключи так же, как это делает браузер.
func browserSubscription(t *testing.T, endpoint string) models.PushSubscription {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return models.PushSubscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
		UserID:   "u1",
	}
}

func newPusher(t *testing.T) *WebPusher {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewWebPusher(config.Push{
		Subject:    "mailto:admin@example.com",
		PublicKey:  public,
		PrivateKey: private,
		TTL:        60,
		Timeout:    2 * time.Second,
	})
}

func TestWebPusherOutcomes(t *testing.T) {
	cases := map[int]Outcome{
		http.StatusCreated:            Delivered,
		http.StatusGone:               Gone,
		http.StatusNotFound:           Gone,
		http.StatusTooManyRequests:    Transient,
		http.StatusServiceUnavailable: Transient,
	}
	for status, want := range cases {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var gotAuth, gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotEncoding = r.Header.Get("Content-Encoding")
				w.WriteHeader(status)
			}))
			defer srv.Close()

			p := newPusher(t)
			outcome, err := p.Send(context.Background(), browserSubscription(t, srv.URL+"/push/1"), []byte(`{"title":"t"}`))
			assert.Equal(t, want, outcome, "outcome %s", outcome)
			if want == Delivered {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.True(t, strings.HasPrefix(gotAuth, "vapid "), "ожидается VAPID авторизация, получено %q", gotAuth)
			assert.Equal(t, "aes128gcm", gotEncoding)
		})
	}
}

func TestWebPusherTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	outcome, err := newPusher(t).Send(context.Background(), browserSubscription(t, url+"/push/1"), []byte(`{}`))
	assert.Equal(t, Transient, outcome)
	assert.Error(t, err)
}

func TestNopPusher(t *testing.T) {
	outcome, err := NopPusher{}.Send(context.Background(), models.PushSubscription{}, nil)
	assert.Equal(t, Delivered, outcome)
	assert.NoError(t, err)
}
