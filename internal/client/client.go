package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/model"
)

// MessageConn is one live feed connection.
type MessageConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens feed connections. The default implementation uses
// gorilla/websocket; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (MessageConn, error)
}

// Client subscribes to a market's update feed and keeps the subscription
// alive across disconnects.
type Client struct {
	url     string
	dialer  Dialer
	machine *Machine
	logger  *slog.Logger

	updates chan model.Update
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithDialer substitutes the transport. Used in tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// New creates a feed client for the given WebSocket URL.
func New(url string, cfg config.ReconnectConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:     url,
		dialer:  &wsDialer{handshakeTimeout: 10 * time.Second},
		machine: NewMachine(cfg),
		logger:  logger,
		updates: make(chan model.Update, 64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the connect-read-reconnect loop.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()
	return nil
}

// Stop tears the client down.
func (c *Client) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates returns the decoded market updates.
func (c *Client) Updates() <-chan model.Update {
	return c.updates
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.machine.State()
}

// Done is closed when the client gives up permanently or is stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) run() {
	defer c.wg.Done()
	defer close(c.done)

	for {
		c.machine.Connecting()

		conn, err := c.dialer.Dial(c.ctx, c.url)
		if err == nil {
			c.machine.Success()
			c.logger.Info("feed connected", "url", c.url)

			// Closing the connection is what unblocks the read loop on
			// shutdown.
			readDone := make(chan struct{})
			go func() {
				select {
				case <-c.ctx.Done():
					conn.Close()
				case <-readDone:
				}
			}()

			err = c.readLoop(conn)
			close(readDone)
			conn.Close()
		}

		select {
		case <-c.ctx.Done():
			return
		default:
		}

		delay, retry := c.machine.Failure()
		if !retry {
			c.logger.Error("feed permanently failed",
				"url", c.url,
				"attempts", c.machine.Attempt(),
			)
			return
		}

		c.logger.Warn("feed disconnected, backing off",
			"url", c.url,
			"attempt", c.machine.Attempt(),
			"delay", delay,
			"err", err,
		)

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// readLoop decodes update frames until the connection errors out. Frames
// that are not market updates (pong replies) are ignored.
func (c *Client) readLoop(conn MessageConn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var update model.Update
		if err := json.Unmarshal(data, &update); err != nil || update.Type != "market_update" {
			continue
		}

		select {
		case c.updates <- update:
		case <-c.ctx.Done():
			return c.ctx.Err()
		default:
			c.logger.Warn("update buffer full, dropping update",
				"market_id", update.MarketID)
		}
	}
}

// wsDialer is the gorilla/websocket transport.
type wsDialer struct {
	handshakeTimeout time.Duration
}

func (d *wsDialer) Dial(ctx context.Context, url string) (MessageConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsMessageConn{conn: conn}, nil
}

type wsMessageConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsMessageConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsMessageConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsMessageConn) Close() error {
	return c.conn.Close()
}
