package properties

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/agsys/edgehog-runtime/internal/ota"
)

const (
	methodSetProperty    = "/edgehog.upstream.v1.UpstreamService/SetProperty"
	methodUnsetProperty  = "/edgehog.upstream.v1.UpstreamService/UnsetProperty"
	methodPublishOtaEvent = "/edgehog.upstream.v1.UpstreamService/PublishOtaEvent"
)

// Config holds the gRPC connection settings for the Upstream Client,
// including the exponential-backoff reconnect parameters this runtime
// already uses for its cloud connection.
type Config struct {
	ServerAddr string
	UseTLS     bool

	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64
	JitterPercent     float64

	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		UseTLS:            true,
		InitialRetryDelay: 1 * time.Second,
		MaxRetryDelay:     60 * time.Second,
		BackoffMultiplier: 2.0,
		JitterPercent:     0.25,
		KeepaliveTime:     30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
	}
}

// Client is the Upstream Client (M): a fire-and-forget property and
// OTA-event sender over a reconnecting gRPC connection. It implements
// both ota.EventPublisher and containers.Publisher.
type Client struct {
	config Config
	log    *logrus.Entry

	mu                sync.Mutex
	conn              *grpc.ClientConn
	connected         bool
	currentRetryDelay time.Duration
	stopChan          chan struct{}
}

func NewClient(config Config, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		config:            config,
		log:               log.WithField("component", "upstream_client"),
		currentRetryDelay: config.InitialRetryDelay,
		stopChan:          make(chan struct{}),
	}
}

// Dial establishes the gRPC connection.
func (c *Client) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.config.KeepaliveTime,
			Timeout:             c.config.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	if c.config.UseTLS {
		creds := credentials.NewClientTLSFromCert(nil, "")
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.DialContext(ctx, c.config.ServerAddr, opts...)
	if err != nil {
		return fmt.Errorf("properties: dial %s: %w", c.config.ServerAddr, err)
	}

	c.conn = conn
	c.connected = true
	c.currentRetryDelay = c.config.InitialRetryDelay
	c.log.WithField("addr", c.config.ServerAddr).Info("connected to upstream")
	return nil
}

// DialWithRetry dials with exponential backoff and jitter, the same
// shape as this runtime's cloud-connection retry loop, until it
// succeeds or ctx/stop fires.
func (c *Client) DialWithRetry(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		if err := c.Dial(ctx); err == nil {
			return
		} else {
			c.log.WithError(err).WithField("retry_in", c.currentRetryDelay).Warn("upstream connect failed, retrying")
		}

		jitter := time.Duration(float64(c.currentRetryDelay) * c.config.JitterPercent * (rand.Float64()*2 - 1))
		time.Sleep(c.currentRetryDelay + jitter)

		c.currentRetryDelay = time.Duration(float64(c.currentRetryDelay) * c.config.BackoffMultiplier)
		if c.currentRetryDelay > c.config.MaxRetryDelay {
			c.currentRetryDelay = c.config.MaxRetryDelay
		}
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	close(c.stopChan)
	c.stopChan = make(chan struct{})
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req wireMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("properties: not connected")
	}

	var ack Ack
	return conn.Invoke(ctx, method, req, &ack, grpc.CallContentSubtype(rawprotoCodecName))
}

// Send implements containers.Publisher: fire-and-forget property
// update. A failure here is recoverable — the caller logs and the
// next reconcile resends.
func (c *Client) Send(ctx context.Context, iface, path string, value any) error {
	req, err := newPropertySet(iface, path, value)
	if err != nil {
		return err
	}
	return c.invoke(ctx, methodSetProperty, req)
}

// Unset implements containers.Publisher.
func (c *Client) Unset(ctx context.Context, iface, path string) error {
	return c.invoke(ctx, methodUnsetProperty, &PropertyUnset{Interface: iface, Path: path})
}

// PublishOtaEvent implements ota.EventPublisher.
func (c *Client) PublishOtaEvent(ctx context.Context, ev ota.OtaEvent) error {
	wire := &OtaEventWire{
		RequestUUID:    ev.RequestUUID,
		Status:         ev.Status,
		StatusCode:     ev.StatusCode,
		StatusProgress: uint32(ev.StatusProgress),
		Message:        ev.Message,
	}
	return c.invoke(ctx, methodPublishOtaEvent, wire)
}
