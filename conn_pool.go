package kroute

import (
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/eapache/go-resiliency/breaker"
)

// connPool holds at most one connection per broker address. Connections are opened lazily and
// dropped on failure so the next use reconnects. With Net.CircuitBreaker enabled, dialing each
// address goes through a breaker and an address that keeps refusing connections fails fast
// for a while.
type connPool struct {
	conf *Config

	lock     sync.Mutex
	conns    map[string]*brokerConn
	breakers map[string]*breaker.Breaker
}

func newConnPool(conf *Config) *connPool {
	return &connPool{
		conf:     conf,
		conns:    make(map[string]*brokerConn),
		breakers: make(map[string]*breaker.Breaker),
	}
}

func (p *connPool) get(host string, port int32) (*brokerConn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	p.lock.Lock()
	if conn, ok := p.conns[addr]; ok {
		p.lock.Unlock()
		return conn, nil
	}
	b := p.breakerFor(addr)
	p.lock.Unlock()

	var conn *brokerConn
	dial := func() (err error) {
		conn, err = openConn(addr, p.conf)
		return err
	}
	var err error
	if b != nil {
		err = b.Run(dial)
	} else {
		err = dial()
	}
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return nil, &ConnectionError{Addr: addr, Err: err}
	} else if err != nil {
		return nil, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if existing, ok := p.conns[addr]; ok {
		// somebody else connected while we were dialing
		_ = conn.Close()
		return existing, nil
	}
	p.conns[addr] = conn
	return conn, nil
}

// breakerFor returns the breaker of addr, or nil when breakers are disabled. Callers hold p.lock.
func (p *connPool) breakerFor(addr string) *breaker.Breaker {
	settings := p.conf.Net.CircuitBreaker
	if !settings.Enable {
		return nil
	}
	b, ok := p.breakers[addr]
	if !ok {
		b = breaker.New(settings.ErrorThreshold, 1, settings.Timeout)
		p.breakers[addr] = b
	}
	return b
}

// discard closes conn and forgets it, unless it was already replaced.
func (p *connPool) discard(conn *brokerConn) {
	p.lock.Lock()
	if p.conns[conn.addr] == conn {
		delete(p.conns, conn.addr)
	}
	p.lock.Unlock()

	if conn.Connected() {
		_ = conn.Close()
	}
}

func (p *connPool) closeAll() error {
	p.lock.Lock()
	conns := p.conns
	p.conns = make(map[string]*brokerConn)
	p.lock.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return multiError(errs...)
}

func (p *connPool) size() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.conns)
}
