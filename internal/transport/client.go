package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/realtime"
)

var (
	ErrInvalidEndpoint  = errors.New("endpoint must be a ws:// or wss:// url")
	ErrAlreadyConnected = errors.New("client already connected")
)

// Options 客户端连接配置
type Options struct {
	HandshakeTimeout  time.Duration // 握手超时
	ReadTimeout       time.Duration // 读取超时，收到 pong 时续期
	WriteTimeout      time.Duration // 写入超时
	PingInterval      time.Duration // Ping 间隔
	ReconnectDelay    time.Duration // 重连基础间隔，按失败次数线性增长
	MaxReconnectDelay time.Duration // 重连间隔上限
	MaxRetries        int           // 连续失败次数上限，0 表示不限
	SuppressEcho      bool          // 丢弃中继回显的本端消息
	EchoTTL           time.Duration // 回显记录保留时间
}

// DefaultOptions 默认客户端配置
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		EchoTTL:           30 * time.Second,
	}
}

// Client 是到中继的单条实时通道。连接断开后由后台协程自动重连，
// 发送在未连接时静默丢弃。
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	echo   *EchoFilter

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	onText  func(string)
	onImage func(string)

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewClient 创建客户端，零值字段使用默认配置
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = def.ReconnectDelay
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = max(def.MaxReconnectDelay, opts.ReconnectDelay)
	}
	if opts.EchoTTL <= 0 {
		opts.EchoTTL = def.EchoTTL
	}

	c := &Client{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
	}
	if opts.SuppressEcho {
		c.echo = NewEchoFilter(opts.EchoTTL, 256)
	}
	return c
}

// OnText 设置文本事件处理器
func (c *Client) OnText(fn func(string)) {
	c.mu.Lock()
	c.onText = fn
	c.mu.Unlock()
}

// OnImage 设置图片事件处理器
func (c *Client) OnImage(fn func(string)) {
	c.mu.Lock()
	c.onImage = fn
	c.mu.Unlock()
}

// Connect 校验地址并启动连接协程，不等待首次握手完成
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.supervise(runCtx, u.String())
	return nil
}

// Connected 报告当前是否持有可用连接
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// PublishText 发送文本事件
func (c *Client) PublishText(text string) {
	c.publish(realtime.TextFrame(text))
}

// PublishImage 发送图片事件
func (c *Client) PublishImage(dataURL string) {
	c.publish(realtime.ImageFrame(dataURL))
}

// Disconnect 关闭连接并停止重连，可重复调用
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	if cancel != nil {
		cancel()
	}
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.wg.Wait()
}

func (c *Client) publish(frame realtime.Frame) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		log.Debug().Str("event", frame.Event).Msg("[transport] not connected, dropping frame")
		return
	}

	if c.echo != nil {
		c.echo.Remember(frame)
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	err := conn.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		if c.echo != nil {
			c.echo.Forget(frame)
		}
		log.Debug().Err(err).Str("event", frame.Event).Msg("[transport] publish failed")
	}
}

// supervise 持续建立连接，断开后按线性退避重连
func (c *Client) supervise(ctx context.Context, endpoint string) {
	defer c.wg.Done()

	failures := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if c.opts.MaxRetries > 0 && failures >= c.opts.MaxRetries {
				log.Warn().Err(err).Int("attempts", failures).Str("endpoint", endpoint).Msg("[transport] giving up")
				c.mu.Lock()
				if c.cancel != nil {
					c.cancel()
					c.cancel = nil
				}
				c.mu.Unlock()
				return
			}
			delay := min(time.Duration(failures)*c.opts.ReconnectDelay, c.opts.MaxReconnectDelay)
			log.Debug().Err(err).Dur("retry_in", delay).Msg("[transport] dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		failures = 0
		if !c.attach(ctx, conn) {
			conn.Close()
			return
		}
		log.Info().Str("endpoint", endpoint).Msg("[transport] connected")

		c.serve(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Info().Msg("[transport] connection lost, reconnecting")
	}
}

// attach 记录新连接；若期间已调用 Disconnect 则放弃
func (c *Client) attach(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	return true
}

// serve 读取事件直到连接出错，同时维持 ping 循环
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		return nil
	})
	go c.pingLoop(connCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("[transport] read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		var frame realtime.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug().Err(err).Msg("[transport] malformed frame")
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame realtime.Frame) {
	if c.echo != nil && c.echo.Consume(frame) {
		return
	}

	c.mu.Lock()
	var fn func(string)
	switch frame.Event {
	case realtime.EventText:
		fn = c.onText
	case realtime.EventImage:
		fn = c.onImage
	}
	c.mu.Unlock()

	if fn != nil {
		fn(frame.Data)
	}
}

// pingLoop 定期发送 ping，写失败时关闭连接以触发重连
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				conn.Close()
				return
			}
		}
	}
}
