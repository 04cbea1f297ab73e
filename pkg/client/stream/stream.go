// Package stream is the live ExecutionEvent transport: one websocket per
// observed flow, events fanned into a channel in send order. Loss of the
// socket is not fatal to the core, since the run session falls back to
// ledger polling, so the reader surfaces closure by closing the event channel.
package stream

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flowdeck/flowdeck/pkg/errmap"
	"github.com/flowdeck/flowdeck/pkg/model/mrun"
)

const (
	// eventBuffer absorbs bursts while the reducer catches up.
	eventBuffer = 256

	pingInterval = 30 * time.Second
)

type Client struct {
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/")}
}

// Conn is one live subscription, keyed by flow id.
type Conn struct {
	ws        *websocket.Conn
	sessionID string
	events    chan mrun.ExecutionEvent
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// Dial opens the event stream for a flow. The connection identifies itself
// with a fresh client session id so the server can dedupe reattachments.
func (c *Client) Dial(ctx context.Context, flowID string) (*Conn, error) {
	sessionID := uuid.NewString()

	u := c.baseURL + "/api/v1/flows/" + url.PathEscape(flowID) + "/events?session=" + url.QueryEscape(sessionID)
	ws, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, errmap.MapRequestError("GET", u, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn := &Conn{
		ws:        ws,
		sessionID: sessionID,
		events:    make(chan mrun.ExecutionEvent, eventBuffer),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go conn.run(runCtx)
	return conn, nil
}

// Events delivers streamed events in send order. The channel closes when
// the transport drops or Close is called.
func (conn *Conn) Events() <-chan mrun.ExecutionEvent {
	return conn.events
}

func (conn *Conn) SessionID() string {
	return conn.sessionID
}

// SendInput answers a waiting-for-input signal out-of-band on the same
// socket.
func (conn *Conn) SendInput(ctx context.Context, runID, text string) error {
	msg := map[string]any{"type": "user_input", "run_id": runID, "text": text}
	return wsjson.Write(ctx, conn.ws, msg)
}

// Close tears the connection down and waits for the read loop to finish.
func (conn *Conn) Close() error {
	conn.cancel()
	<-conn.done
	return conn.err
}

// Err reports why the stream ended, nil for a clean close.
func (conn *Conn) Err() error {
	select {
	case <-conn.done:
		return conn.err
	default:
		return nil
	}
}

func (conn *Conn) run(ctx context.Context) {
	defer close(conn.done)
	defer close(conn.events)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.readLoop(gctx) })
	g.Go(func() error { return conn.pingLoop(gctx) })

	err := g.Wait()
	conn.ws.Close(websocket.StatusNormalClosure, "")
	if err != nil && ctx.Err() == nil {
		conn.err = errmap.Map(err)
	}
}

func (conn *Conn) readLoop(ctx context.Context) error {
	for {
		var ev mrun.ExecutionEvent
		if err := wsjson.Read(ctx, conn.ws, &ev); err != nil {
			return err
		}
		select {
		case conn.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (conn *Conn) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := conn.ws.Ping(ctx); err != nil {
				return err
			}
		}
	}
}
