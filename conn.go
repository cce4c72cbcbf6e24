package kroute

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/IBM/kroute/encoding"
	"github.com/IBM/kroute/protocol"
)

// brokerConn is a single connection to one broker. Requests are written whole and responses
// are matched to them by correlation id; a response read while waiting for another one is
// kept until its own Receive call.
type brokerConn struct {
	addr string
	conf *Config

	writeLock sync.Mutex
	readLock  sync.Mutex

	lock    sync.Mutex
	conn    net.Conn
	pending map[int32]struct{}
	stash   map[int32][]byte

	incomingByteRate metrics.Meter
	outgoingByteRate metrics.Meter
}

func openConn(addr string, conf *Config) (*brokerConn, error) {
	conn, err := conf.getDialer().Dial("tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	if conf.Net.TLS.Enable {
		conn = tls.Client(conn, validServerNameTLS(addr, conf.Net.TLS.Config))
	}

	Logger.Printf("conn/%s connected\n", addr)
	return &brokerConn{
		addr:             addr,
		conf:             conf,
		conn:             conn,
		pending:          make(map[int32]struct{}),
		stash:            make(map[int32][]byte),
		incomingByteRate: metrics.GetOrRegisterMeter("incoming-byte-rate", conf.MetricRegistry),
		outgoingByteRate: metrics.GetOrRegisterMeter("outgoing-byte-rate", conf.MetricRegistry),
	}, nil
}

func validServerNameTLS(addr string, cfg *tls.Config) *tls.Config {
	if cfg == nil {
		cfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	if cfg.ServerName != "" {
		return cfg
	}

	c := cfg.Clone()
	sn, _, err := net.SplitHostPort(addr)
	if err != nil {
		Logger.Println(fmt.Errorf("failed to get ServerName from addr %w", err))
	}
	c.ServerName = sn
	return c
}

func (c *brokerConn) netConn() (net.Conn, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.conn == nil {
		return nil, &ConnectionError{Addr: c.addr, Err: ErrNotConnected}
	}
	return c.conn, nil
}

// Send writes a framed request tagged with correlationID. Unless expectResponse is false the
// request is remembered so that Receive can wait for its response.
func (c *brokerConn) Send(correlationID int32, request []byte, expectResponse bool) error {
	conn, err := c.netConn()
	if err != nil {
		return err
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if expectResponse {
		c.lock.Lock()
		c.pending[correlationID] = struct{}{}
		c.lock.Unlock()
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.conf.Net.WriteTimeout)); err != nil {
		c.forget(correlationID)
		return &ConnectionError{Addr: c.addr, Err: err}
	}
	n, err := conn.Write(request)
	c.outgoingByteRate.Mark(int64(n))
	if err != nil {
		c.forget(correlationID)
		return &ConnectionError{Addr: c.addr, Err: err}
	}
	return nil
}

func (c *brokerConn) forget(correlationID int32) {
	c.lock.Lock()
	delete(c.pending, correlationID)
	c.lock.Unlock()
}

// Receive returns the body of the response to the request sent with correlationID, that is
// everything following the correlation id in the response frame.
func (c *brokerConn) Receive(correlationID int32) ([]byte, error) {
	c.readLock.Lock()
	defer c.readLock.Unlock()

	for {
		c.lock.Lock()
		if body, ok := c.stash[correlationID]; ok {
			delete(c.stash, correlationID)
			delete(c.pending, correlationID)
			c.lock.Unlock()
			return body, nil
		}
		_, inFlight := c.pending[correlationID]
		c.lock.Unlock()

		if !inFlight {
			return nil, &ConnectionError{Addr: c.addr, Err: fmt.Errorf("%w: %d was never sent", ErrCorrelationMismatch, correlationID)}
		}

		id, body, err := c.readFrame()
		if err != nil {
			return nil, err
		}

		c.lock.Lock()
		_, expected := c.pending[id]
		switch {
		case id == correlationID:
			delete(c.pending, id)
			c.lock.Unlock()
			return body, nil
		case expected:
			c.stash[id] = body
			c.lock.Unlock()
		default:
			c.lock.Unlock()
			return nil, &ConnectionError{Addr: c.addr, Err: fmt.Errorf("%w: got %d while waiting for %d", ErrCorrelationMismatch, id, correlationID)}
		}
	}
}

func (c *brokerConn) readFrame() (int32, []byte, error) {
	conn, err := c.netConn()
	if err != nil {
		return 0, nil, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.conf.Net.ReadTimeout)); err != nil {
		return 0, nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	headerBytes := make([]byte, protocol.ResponseHeaderSize)
	n, err := io.ReadFull(conn, headerBytes)
	c.incomingByteRate.Mark(int64(n))
	if err != nil {
		return 0, nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	header := new(protocol.ResponseHeader)
	if err := encoding.Decode(headerBytes, header); err != nil {
		return 0, nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	body := make([]byte, header.Length-4)
	n, err = io.ReadFull(conn, body)
	c.incomingByteRate.Mark(int64(n))
	if err != nil {
		return 0, nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	return header.CorrelationID, body, nil
}

// Close closes the underlying connection. Requests still in flight are forgotten.
func (c *brokerConn) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.conn == nil {
		return &ConnectionError{Addr: c.addr, Err: ErrNotConnected}
	}

	err := c.conn.Close()
	c.conn = nil
	c.pending = make(map[int32]struct{})
	c.stash = make(map[int32][]byte)

	if err != nil {
		Logger.Printf("conn/%s error while closing: %v\n", c.addr, err)
		return &ConnectionError{Addr: c.addr, Err: err}
	}
	Logger.Printf("conn/%s closed\n", c.addr)
	return nil
}

// Connected reports whether Close has not been called yet.
func (c *brokerConn) Connected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.conn != nil
}
