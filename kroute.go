/*
Package kroute is the broker-aware routing core of a Kafka 0.8 protocol client.

A Client keeps a cache of cluster metadata (which broker leads each partition of each topic), discovers it by
asking the configured bootstrap hosts in turn, and sends each batch of per-partition payloads to the brokers
that lead them. Responses come back in the order the payloads were given, no matter how the payloads were
grouped or in which order the brokers answered:

	client, err := kroute.NewClient([]string{"localhost:9092"}, kroute.NewConfig())
	if err != nil {
		panic(err)
	}
	defer client.Close()

	blocks, err := client.SendOffsetRequest([]*protocol.OffsetPayload{
		{Topic: "my_topic", Partition: 0, Time: protocol.OffsetNewest, MaxOffsets: 1},
	})

Errors that indicate stale leadership (unknown topic or partition, not leader for partition) drop the cached
metadata of the affected topic so that the next request rediscovers it. A connection failure drops all of it.

Metrics

Metrics are exposed through https://github.com/rcrowley/go-metrics library in a local registry (Config.MetricRegistry).

	+------------------------------------------+------------+------------------------------------------------------+
	| Name                                     | Type       | Description                                          |
	+------------------------------------------+------------+------------------------------------------------------+
	| request-rate                             | meter      | Requests/second sent to all brokers                  |
	| request-rate-for-broker-<broker-id>      | meter      | Requests/second sent to a given broker               |
	| request-latency-in-ms-for-broker-<id>    | histogram  | Round trip time in ms for a given broker             |
	| incoming-byte-rate                       | meter      | Bytes/second read off all brokers                    |
	| outgoing-byte-rate                       | meter      | Bytes/second written off all brokers                 |
	| metadata-reload-rate                     | meter      | Metadata reloads/second                              |
	| metadata-invalidation-rate               | meter      | Topic or full metadata invalidations/second          |
	| bootstrap-failover-rate                  | meter      | Bootstrap hosts/second that failed a request         |
	| failed-payloads                          | counter    | Payloads reported back in a FailedPayloadsError      |
	+------------------------------------------+------------+------------------------------------------------------+
*/
package kroute

import (
	"io"
	"log"
)

// Logger is the instance of a StdLogger interface that kroute writes connection
// management events to. By default it is set to discard all log messages via io.Discard,
// but you can set it to redirect wherever you want.
var Logger StdLogger = log.New(io.Discard, "[kroute] ", log.LstdFlags)

// StdLogger is used to log error messages.
type StdLogger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
