package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 1 * time.Second
	maxMessageSize = 8192

	// At most one update is published per pubResolution.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// Four missed pongs and the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client pushes updates to one browser over a websocket. Only the newest update of each
// publication period is sent, so every update must carry the full page state.
type Client[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket and returns a client publishing updates
// to it. On failure the upgrader has already replied to the request.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client[T]{
		updates: updates,
		ws:      NewWebSocket(ws),
		rootCtx: r.Context(),
	}, nil
}

// Sync runs the read, ping and publish pumps until one of them stops. A normal close by the
// browser returns nil.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})
	group.Go(func() error {
		// Unblock the reader once any pump stops.
		<-groupCtx.Done()
		return cli.ws.Conn().SetReadDeadline(time.Now())
	})

	if err := group.Wait(); !errors.Is(err, errClientClosed) {
		return err
	}
	return nil
}

// Close sends a close frame and closes the websocket. Sync must have returned.
func (cli *Client[T]) Close() {
	cli.ws.Close()
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// errClientClosed stops the pumps when the client closes the socket normally.
var errClientClosed = errors.New("client closed")

// pingPong fails once pongs stop arriving. Pong handlers run inside reads, so readMessages
// must be running.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	// Buffered and never closed: the handler runs on the reader goroutine, which may
	// outlive this one.
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %w", err, err)
				}
			}
			return
		})
}

// readMessages discards whatever the browser sends. A read error is permanent and ends
// the client.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if isClosure(err) {
			return errClientClosed
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// publish sends the latest pending update once per pubResolution. The last update of a
// burst is always sent.
func (cli *Client[T]) publish(ctx context.Context) error {
	var pending T
	hasPending := false

	ticker := channerics.NewTicker(ctx.Done(), pubResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			if !ok {
				return nil
			}
			pending = updates
			hasPending = true
		case <-ticker:
			if !hasPending {
				break
			}
			hasPending = false
			err := cli.ws.Write(
				ctx,
				func(ws *websocket.Conn) (writeErr error) {
					if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
						writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
						return
					}

					if writeErr = ws.WriteJSON(pending); writeErr != nil {
						if isError(writeErr) {
							writeErr = fmt.Errorf("publish failed: %T %w", writeErr, writeErr)
						}
					}
					return
				})
			if err != nil {
				return err
			}
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion is returned when a write waits longer than writeDeadline for its turn.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeDeadline    = time.Second
	closeGracePeriod = time.Second
)

// websock allows one reader and one writer on the connection at a time.
type websock struct {
	// Single-slot semaphores, selectable against ctx and timeouts.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn is for setup only, such as installing handlers before the pumps start.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close writes a close frame and closes the connection once the peer had time to answer.
// It must only be called once no further writers exist.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}

	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket. The single reader blocks in
// readFn, so there is no congestion deadline here.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
