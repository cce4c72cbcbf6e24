package kroute

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/kroute/encoding"
)

// TestState is a generic interface for a test state, implemented e.g. by testing.T
type TestState interface {
	Error(args ...interface{})
	Fatal(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// MockBroker is a mock Kafka broker. It consists of a TCP server on a kernel-selected localhost port
// that accepts any number of connections. Every request read from any connection consumes the next
// expectation queued with Returns or Expects, in order; a request arriving while no expectation is
// queued fails the test and closes its connection.
//
// When running tests with one of these, it is strongly recommended to specify a timeout to `go test`
// so that if the client hangs waiting for a response, the test panics.
//
// It is not necessary to prefix message length or correlation ID to your response bytes, the server
// does that automatically as a convenience.
type MockBroker struct {
	brokerID     int32
	port         int32
	expectations chan *BrokerExpectation
	listener     net.Listener
	t            TestState

	wg      sync.WaitGroup
	lock    sync.Mutex
	conns   map[net.Conn]struct{}
	history []RequestRecord
	closing bool
}

// MockCluster is a set of mock brokers keyed by broker id.
type MockCluster map[int32]*MockBroker

type callback func()

// BrokerExpectation specifies how the MockBroker answers one request. See Expects.
type BrokerExpectation struct {
	Before   callback         // Before is called after a request has been received, before anything else
	Latency  time.Duration    // Latency before the response is sent
	Response encoding.Encoder // Response holds what is sent back; nil sends nothing and keeps reading
	After    callback         // After is called after the response has been sent

	CloseConnection bool // CloseConnection closes the connection instead of answering the request

	IgnoreConnectionErrors bool // IgnoreConnectionErrors should be set to true if the client may hang up before the response is written.
}

// RequestRecord describes one request received by a MockBroker.
type RequestRecord struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      string
	Body          []byte // everything following the request header
}

// NewMockBroker launches a fake Kafka broker. It takes a TestState (e.g. *testing.T) as provided by the
// test framework and a broker id that is used for metadata responses.
func NewMockBroker(t TestState, brokerID int32) *MockBroker {
	return NewMockBrokerAddr(t, brokerID, "localhost:0")
}

// NewMockBrokerAddr behaves like NewMockBroker but listens on addr.
func NewMockBrokerAddr(t TestState, brokerID int32, addr string) *MockBroker {
	var err error

	broker := &MockBroker{
		brokerID:     brokerID,
		t:            t,
		expectations: make(chan *BrokerExpectation, 512),
		conns:        make(map[net.Conn]struct{}),
	}

	broker.listener, err = net.Listen("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	Logger.Printf("*** mockbroker/%d listening on %s\n", brokerID, broker.listener.Addr().String())

	_, portStr, err := net.SplitHostPort(broker.listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	tmp, err := strconv.ParseInt(portStr, 10, 32)
	if err != nil {
		t.Fatal(err)
	}
	broker.port = int32(tmp)

	broker.wg.Add(1)
	go broker.acceptLoop()

	return broker
}

func (b *MockBroker) BrokerID() int32 {
	return b.brokerID
}

func (b *MockBroker) Port() int32 {
	return b.port
}

func (b *MockBroker) Addr() string {
	return b.listener.Addr().String()
}

// Returns queues a response to the next request.
func (b *MockBroker) Returns(e encoding.Encoder) {
	b.expectations <- &BrokerExpectation{Response: e}
}

// Expects queues an expectation for the next request.
func (b *MockBroker) Expects(e *BrokerExpectation) {
	b.expectations <- e
}

// History returns the requests received so far, in arrival order.
func (b *MockBroker) History() []RequestRecord {
	b.lock.Lock()
	defer b.lock.Unlock()

	return append([]RequestRecord(nil), b.history...)
}

// RequestCount returns how many requests with apiKey were received so far.
func (b *MockBroker) RequestCount(apiKey int16) int {
	count := 0
	for _, record := range b.History() {
		if record.APIKey == apiKey {
			count++
		}
	}
	return count
}

// Close stops the broker, closes every open connection and waits for them to be released.
// It fails the test if expectations are still queued.
func (b *MockBroker) Close() {
	if len(b.expectations) > 0 {
		b.t.Errorf("Not all expectations were satisfied in mock broker with ID=%d! Still waiting on %d requests.", b.BrokerID(), len(b.expectations))
	}

	b.lock.Lock()
	b.closing = true
	for conn := range b.conns {
		_ = conn.Close()
	}
	b.lock.Unlock()

	if err := b.listener.Close(); err != nil {
		b.t.Error(err)
	}
	b.wg.Wait()
}

func (b *MockBroker) isClosing() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.closing
}

func (b *MockBroker) acceptLoop() {
	defer b.wg.Done()

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if !b.isClosing() {
				b.t.Error(err)
			}
			return
		}

		b.lock.Lock()
		if b.closing {
			b.lock.Unlock()
			_ = conn.Close()
			return
		}
		b.conns[conn] = struct{}{}
		b.lock.Unlock()

		b.wg.Add(1)
		go b.serveConn(conn)
	}
}

func (b *MockBroker) serveConn(conn net.Conn) {
	defer b.wg.Done()
	defer func() {
		b.lock.Lock()
		delete(b.conns, conn)
		b.lock.Unlock()
		_ = conn.Close()
	}()

	reqHeader := make([]byte, 4)
	resHeader := make([]byte, 8)
	for {
		// a read error means the client hung up, or Close was called
		if _, err := io.ReadFull(conn, reqHeader); err != nil {
			return
		}
		body := make([]byte, binary.BigEndian.Uint32(reqHeader))
		if len(body) < 10 {
			b.t.Error(errors.New("Kafka request too short."))
			return
		}
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		record, err := parseRequestRecord(body)
		if err != nil {
			b.t.Error(err)
			return
		}

		var expectation *BrokerExpectation
		select {
		case expectation = <-b.expectations:
		default:
			b.t.Errorf("mockbroker/%d received unexpected request with api key %d", b.brokerID, record.APIKey)
			return
		}

		b.lock.Lock()
		b.history = append(b.history, record)
		b.lock.Unlock()

		if expectation.Before != nil {
			expectation.Before()
		}
		if expectation.Latency > 0 {
			time.Sleep(expectation.Latency)
		}
		if expectation.CloseConnection {
			Logger.Printf("*** mockbroker/%d closing connection on request %d\n", b.brokerID, record.CorrelationID)
			return
		}
		if expectation.Response == nil {
			continue
		}

		response, err := encoding.Encode(expectation.Response)
		if err != nil {
			b.t.Error(err)
			return
		}

		binary.BigEndian.PutUint32(resHeader, uint32(len(response)+4))
		binary.BigEndian.PutUint32(resHeader[4:], uint32(record.CorrelationID))
		if _, err = conn.Write(resHeader); err == nil {
			_, err = conn.Write(response)
		}
		if err != nil {
			if !expectation.IgnoreConnectionErrors && !b.isClosing() {
				b.t.Error(err)
			}
			return
		}

		if expectation.After != nil {
			expectation.After()
		}
	}
}

func parseRequestRecord(body []byte) (RequestRecord, error) {
	record := RequestRecord{
		APIKey:        int16(binary.BigEndian.Uint16(body[0:])),
		APIVersion:    int16(binary.BigEndian.Uint16(body[2:])),
		CorrelationID: int32(binary.BigEndian.Uint32(body[4:])),
	}

	clientIDLen := int(int16(binary.BigEndian.Uint16(body[8:])))
	rest := body[10:]
	if clientIDLen > 0 {
		if clientIDLen > len(rest) {
			return record, errors.New("Kafka request client id overflows the request")
		}
		record.ClientID = string(rest[:clientIDLen])
		rest = rest[clientIDLen:]
	}
	record.Body = rest
	return record, nil
}
