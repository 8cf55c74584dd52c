package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub(nil, nil)
	require.NoError(t, hub.Start(context.Background()))
	defer hub.Stop(context.Background())

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(OrdinalMinted, map[string]string{"ordinalId": "o1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, OrdinalMinted, evt.Type)
	assert.Equal(t, "o1", evt.Data["ordinalId"])
}

func TestHubRejectsDisallowedOrigin(t *testing.T) {
	hub := NewHub(func(origin string) bool { return origin == "http://localhost:3000" }, nil)
	require.NoError(t, hub.Start(context.Background()))
	defer hub.Stop(context.Background())

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil, nil)
	for i := 0; i < broadcastQueue+10; i++ {
		hub.Publish(OrdinalListed, i)
	}
	Nop{}.Publish(OrdinalSold, nil)
}
