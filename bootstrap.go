package kroute

import (
	"github.com/rcrowley/go-metrics"
)

// bootstrapRequester sends requests that any broker can answer, such as metadata requests,
// trying the configured hosts in order until one of them succeeds.
type bootstrapRequester struct {
	hosts []hostPort
	pool  *connPool

	failoverRate metrics.Meter
}

func newBootstrapRequester(conf *Config, hosts []hostPort, pool *connPool) *bootstrapRequester {
	return &bootstrapRequester{
		hosts:        hosts,
		pool:         pool,
		failoverRate: metrics.GetOrRegisterMeter("bootstrap-failover-rate", conf.MetricRegistry),
	}
}

// send performs a full round trip of request with the first host that completes one, handing
// the response body to decode. A decode error counts as a failure of that host. If every host
// fails the error is ErrClusterUnavailable, wrapping each host's error.
func (b *bootstrapRequester) send(correlationID int32, request []byte, decode func(body []byte) error) error {
	var errs []error
	for _, host := range b.hosts {
		err := b.tryHost(host, correlationID, request, decode)
		if err == nil {
			return nil
		}

		Logger.Printf("client/bootstrap could not complete request with %s, trying next host: %v\n", host.addr(), err)
		b.failoverRate.Mark(1)
		errs = append(errs, err)
	}

	Logger.Println("client/bootstrap no available hosts")
	return Wrap(ErrClusterUnavailable, errs...)
}

func (b *bootstrapRequester) tryHost(host hostPort, correlationID int32, request []byte, decode func(body []byte) error) error {
	conn, err := b.pool.get(host.host, host.port)
	if err != nil {
		return err
	}

	err = conn.Send(correlationID, request, true)
	if err == nil {
		var body []byte
		body, err = conn.Receive(correlationID)
		if err == nil {
			err = decode(body)
		}
	}
	if err != nil {
		b.pool.discard(conn)
	}
	return err
}
