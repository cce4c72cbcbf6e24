package kroute

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"

	"github.com/IBM/kroute/protocol"
)

// encodeFunc encodes the payloads bound for one broker into a single framed request.
type encodeFunc func(correlationID int32, payloads []protocol.Block) ([]byte, error)

// decodeFunc decodes a response body into per-partition responses. A nil decodeFunc means the
// broker does not answer the request.
type decodeFunc func(body []byte) ([]protocol.Response, error)

// dispatcher routes batches of payloads to the leaders of their partitions.
type dispatcher struct {
	conf        *Config
	cache       *metadataCache
	pool        *connPool
	correlation *CorrelationIDGenerator

	requestRate    metrics.Meter
	failedPayloads metrics.Counter
}

func newDispatcher(conf *Config, cache *metadataCache, pool *connPool, correlation *CorrelationIDGenerator) *dispatcher {
	return &dispatcher{
		conf:           conf,
		cache:          cache,
		pool:           pool,
		correlation:    correlation,
		requestRate:    metrics.GetOrRegisterMeter("request-rate", conf.MetricRegistry),
		failedPayloads: metrics.GetOrRegisterCounter("failed-payloads", conf.MetricRegistry),
	}
}

// brokerGroup is the share of a batch led by one broker.
type brokerGroup struct {
	broker        BrokerDescriptor
	payloads      []protocol.Block
	correlationID int32
	request       []byte
	err           error
}

// dispatch sends every payload to the leader of its partition, one request per broker, and
// returns the responses in the order of payloads.
//
// Every leader is resolved before anything is sent; a partition without a leader fails the
// whole batch with a LeaderUnavailableError. The brokers are then talked to concurrently. If any
// of them fails, all cached metadata is dropped and the call returns a FailedPayloadsError
// naming the payloads of the failed brokers, even though the others succeeded.
func (d *dispatcher) dispatch(payloads []protocol.Block, encode encodeFunc, decode decodeFunc) ([]protocol.Response, error) {
	keys := make([]TopicPartition, len(payloads))
	groupOf := make([]*brokerGroup, len(payloads))
	byBroker := make(map[int32]*brokerGroup)
	pending := queue.New()

	for i, payload := range payloads {
		topic, partition := payload.TopicPartition()
		keys[i] = TopicPartition{Topic: topic, Partition: partition}

		leader, err := d.cache.leaderFor(topic, partition)
		if err != nil {
			return nil, err
		}
		if leader == nil {
			return nil, &LeaderUnavailableError{Topic: topic, Partition: partition}
		}

		group, ok := byBroker[leader.ID]
		if !ok {
			group = &brokerGroup{broker: *leader}
			byBroker[leader.ID] = group
			pending.Add(group)
		}
		group.payloads = append(group.payloads, payload)
		groupOf[i] = group
	}

	// encode everything before the first byte goes out
	for i := 0; i < pending.Length(); i++ {
		group := pending.Get(i).(*brokerGroup)
		group.correlationID = d.correlation.Next()

		request, err := encode(group.correlationID, group.payloads)
		if err != nil {
			return nil, err
		}
		group.request = request
	}

	var (
		wg   errgroup.Group
		lock sync.Mutex
		acc  = make(map[TopicPartition]protocol.Response, len(payloads))
	)
	for pending.Length() > 0 {
		group := pending.Remove().(*brokerGroup)
		wg.Go(func() error {
			responses, err := d.roundTrip(group, decode)
			if err != nil {
				group.err = err
				return err
			}

			lock.Lock()
			defer lock.Unlock()
			for _, response := range responses {
				topic, partition := response.TopicPartition()
				acc[TopicPartition{Topic: topic, Partition: partition}] = response
			}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		failed := new(FailedPayloadsError)
		var causes []error
		reported := make(map[*brokerGroup]bool)
		for i, payload := range payloads {
			group := groupOf[i]
			if group.err == nil {
				continue
			}
			failed.Payloads = append(failed.Payloads, payload)
			if !reported[group] {
				reported[group] = true
				causes = append(causes, group.err)
			}
		}
		failed.Err = multiError(causes...)
		d.failedPayloads.Inc(int64(len(failed.Payloads)))
		return nil, failed
	}

	if decode == nil {
		return nil, nil
	}

	responses := make([]protocol.Response, 0, len(keys))
	for _, key := range keys {
		response, ok := acc[key]
		if !ok {
			return nil, fmt.Errorf("%w: no block for %s", ErrIncompleteResponse, key)
		}
		responses = append(responses, response)
	}
	return responses, nil
}

// roundTrip sends the request of group and, unless decode is nil, receives and decodes the
// response. On failure the connection is discarded and all cached metadata is dropped, since
// the failure may mean the cluster layout changed.
func (d *dispatcher) roundTrip(group *brokerGroup, decode decodeFunc) ([]protocol.Response, error) {
	broker := group.broker
	start := time.Now()

	conn, err := d.pool.get(broker.Host, broker.Port)
	if err != nil {
		Logger.Printf("client/dispatch could not connect to broker %s: %v\n", broker, err)
		d.cache.invalidateAll()
		return nil, err
	}

	responses, err := d.exchange(conn, group, decode)
	if err != nil {
		Logger.Printf("client/dispatch request %d to broker %s failed: %v\n", group.correlationID, broker, err)
		d.pool.discard(conn)
		d.cache.invalidateAll()
		return nil, err
	}

	d.requestRate.Mark(1)
	getOrRegisterBrokerMeter("request-rate", broker.ID, d.conf.MetricRegistry).Mark(1)
	getOrRegisterBrokerHistogram("request-latency-in-ms", broker.ID, d.conf.MetricRegistry).
		Update(int64(time.Since(start) / time.Millisecond))
	return responses, nil
}

func (d *dispatcher) exchange(conn *brokerConn, group *brokerGroup, decode decodeFunc) ([]protocol.Response, error) {
	if err := conn.Send(group.correlationID, group.request, decode != nil); err != nil {
		return nil, err
	}
	if decode == nil {
		return nil, nil
	}

	body, err := conn.Receive(group.correlationID)
	if err != nil {
		return nil, err
	}
	return decode(body)
}
