package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedEvent struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func (e namedEvent) EventName() string { return e.Kind }

func TestFrame(t *testing.T) {
	msg, err := frame(namedEvent{Kind: "discovery_completed", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, "event: discovery_completed\ndata: {\"kind\":\"discovery_completed\",\"count\":3}\n\n", string(msg))

	msg, err = frame(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "data: {\"n\":1}\n\n", string(msg))

	_, err = frame(make(chan int))
	assert.Error(t, err)
}

func TestStreamReceivesBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ": connected "))

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ch := make(chan namedEvent, 1)
	go Forward(ctx, h, (<-chan namedEvent)(ch))
	ch <- namedEvent{Kind: "cache_invalidated"}

	var got []string
	for len(got) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		got = append(got, line)
	}
	assert.Equal(t, "event: cache_invalidated", got[0])
	assert.Equal(t, `data: {"kind":"cache_invalidated","count":0}`, got[1])
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, h.ClientCount())
}
