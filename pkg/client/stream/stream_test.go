package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/model/mrun"
)

// streamServer accepts one websocket per request and hands it to serve.
func streamServer(t *testing.T, serve func(ctx context.Context, r *http.Request, ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		serve(r.Context(), r, ws)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsBase(srv *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func TestDialReceivesEventsInOrder(t *testing.T) {
	srv := streamServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		assert.Equal(t, "/api/v1/flows/f1/events", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("session"))

		for _, ev := range []mrun.ExecutionEvent{
			{Type: mrun.EventFlowStart, RunID: "run-1"},
			{Type: mrun.EventNodeStart, NodeID: "llm_call-2"},
			{Type: mrun.EventFlowComplete},
		} {
			require.NoError(t, wsjson.Write(ctx, ws, ev))
		}
		ws.Close(websocket.StatusNormalClosure, "")
	})

	conn, err := NewClient(wsBase(srv)).Dial(context.Background(), "f1")
	require.NoError(t, err)
	defer conn.Close()

	var got []mrun.EventType
	for ev := range conn.Events() {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []mrun.EventType{mrun.EventFlowStart, mrun.EventNodeStart, mrun.EventFlowComplete}, got)
}

func TestEventsChannelClosesOnServerDrop(t *testing.T) {
	srv := streamServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		require.NoError(t, wsjson.Write(ctx, ws, mrun.ExecutionEvent{Type: mrun.EventFlowStart}))
		ws.CloseNow()
	})

	conn, err := NewClient(wsBase(srv)).Dial(context.Background(), "f1")
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-conn.Events():
	case <-time.After(time.Second):
		t.Fatal("first event never arrived")
	}
	select {
	case _, ok := <-conn.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel never closed after drop")
	}
}

func TestSendInput(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := streamServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		var msg map[string]any
		if err := wsjson.Read(ctx, ws, &msg); err == nil {
			received <- msg
		}
		ws.Close(websocket.StatusNormalClosure, "")
	})

	conn, err := NewClient(wsBase(srv)).Dial(context.Background(), "f1")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SendInput(context.Background(), "run-1", "yes"))

	select {
	case msg := <-received:
		assert.Equal(t, "user_input", msg["type"])
		assert.Equal(t, "run-1", msg["run_id"])
		assert.Equal(t, "yes", msg["text"])
	case <-time.After(time.Second):
		t.Fatal("server never received the input message")
	}
}

func TestCloseIsClean(t *testing.T) {
	srv := streamServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		// Hold the socket open until the client goes away.
		var msg map[string]any
		wsjson.Read(ctx, ws, &msg)
	})

	conn, err := NewClient(wsBase(srv)).Dial(context.Background(), "f1")
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Err())
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(wsBase(srv)).Dial(context.Background(), "f1")
	assert.Error(t, err)
}

func TestSessionIDIsUniquePerDial(t *testing.T) {
	srv := streamServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		ws.Close(websocket.StatusNormalClosure, "")
	})

	c := NewClient(wsBase(srv))
	a, err := c.Dial(context.Background(), "f1")
	require.NoError(t, err)
	defer a.Close()
	b, err := c.Dial(context.Background(), "f1")
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.SessionID(), b.SessionID())
}
