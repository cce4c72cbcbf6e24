/*
Package protocol implements the Kafka 0.8 (v0) wire codec for the request families routed by kroute:
produce, fetch, list offsets, offset commit, offset fetch and metadata.

Every family exposes a payload type (one per topic/partition), a per-partition response type, and a pair
of functions encoding a batch of payloads into a framed request and decoding a response body back into
per-partition records:

	req, err := protocol.EncodeFetchRequest("myClient", 42, payloads, protocol.FetchOptions{MaxWaitTime: 100, MinBytes: 1})
	// send req, read the response body for correlation id 42
	blocks, err := protocol.DecodeFetchResponse(body)

The objects and properties in this package are mostly undocumented, as they line up exactly with the
protocol fields documented by Kafka at https://cwiki.apache.org/confluence/display/KAFKA/A+Guide+To+The+Kafka+Protocol
*/
package protocol
