package kroute

import (
	"sync"
	"time"

	"github.com/IBM/kroute/protocol"
)

// Client talks to a Kafka cluster on behalf of its caller: it discovers which broker leads each
// partition and sends each payload of a request to the right one.
//
// A Client and the metadata it caches are meant to be driven by one goroutine (or with external
// serialization). Use Clone to hand an independent client to another goroutine.
type Client struct {
	conf        *Config
	hosts       []hostPort
	correlation *CorrelationIDGenerator

	pool       *connPool
	cache      *metadataCache
	bootstrap  *bootstrapRequester
	dispatcher *dispatcher

	lock   sync.RWMutex // protects closed
	closed bool
}

// NewClient creates a new Client. It connects to one of the given broker addresses
// ("host:port") and uses that broker to load the metadata of every topic. The addresses are
// tried in order, and the first one that answers is used.
func NewClient(addrs []string, conf *Config) (*Client, error) {
	Logger.Println("Initializing new client")

	if conf == nil {
		conf = NewConfig()
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if len(addrs) < 1 {
		return nil, ConfigurationError("You must provide at least one broker address")
	}

	hosts, err := parseHosts(addrs)
	if err != nil {
		return nil, err
	}

	client := newClient(conf, hosts, new(CorrelationIDGenerator), nil)

	if err := client.LoadMetadataForTopics(); err != nil {
		_ = client.pool.closeAll()
		return nil, err
	}

	Logger.Println("Successfully initialized new client")
	return client, nil
}

// newClient wires a client together. A nil from copies nothing, otherwise the new client starts
// with a copy of the metadata cached by from.
func newClient(conf *Config, hosts []hostPort, correlation *CorrelationIDGenerator, from *metadataCache) *Client {
	client := &Client{
		conf:        conf,
		hosts:       hosts,
		correlation: correlation,
		pool:        newConnPool(conf),
	}

	if from == nil {
		client.cache = newMetadataCache(conf, client.fetchMetadata)
	} else {
		client.cache = from.clone(client.fetchMetadata)
	}
	client.bootstrap = newBootstrapRequester(conf, hosts, client.pool)
	client.dispatcher = newDispatcher(conf, client.cache, client.pool, correlation)
	return client
}

func (client *Client) fetchMetadata(topics []string) (*protocol.MetadataResponse, error) {
	correlationID := client.correlation.Next()
	request, err := protocol.EncodeMetadataRequest(client.conf.ClientID, correlationID, topics)
	if err != nil {
		return nil, err
	}

	var response *protocol.MetadataResponse
	err = client.bootstrap.send(correlationID, request, func(body []byte) (err error) {
		response, err = protocol.DecodeMetadataResponse(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	Logger.Printf("client/metadata got %d brokers and %d topics\n", len(response.Brokers), len(response.Topics))
	return response, nil
}

// Config returns the Config this client was created with.
func (client *Client) Config() *Config {
	return client.conf
}

// LoadMetadataForTopics reloads the metadata of topics, or of every topic if none are given,
// from the first bootstrap host that answers. It returns ErrClusterUnavailable if none does.
func (client *Client) LoadMetadataForTopics(topics ...string) error {
	if client.Closed() {
		return ErrClosedClient
	}
	return client.cache.reload(topics...)
}

// ResetTopicMetadata drops the cached metadata of topics. Topics never loaded are ignored.
func (client *Client) ResetTopicMetadata(topics ...string) {
	client.cache.invalidateTopic(topics...)
}

// ResetAllMetadata drops the cached metadata of every topic.
func (client *Client) ResetAllMetadata() {
	client.cache.invalidateAll()
}

// HasMetadataForTopic reports whether the metadata of topic is cached.
func (client *Client) HasMetadataForTopic(topic string) bool {
	return client.cache.hasMetadata(topic)
}

// Leader returns the broker leading topic/partition, loading the topic if needed.
func (client *Client) Leader(topic string, partition int32) (BrokerDescriptor, error) {
	if client.Closed() {
		return BrokerDescriptor{}, ErrClosedClient
	}

	leader, err := client.cache.leaderFor(topic, partition)
	if err != nil {
		return BrokerDescriptor{}, err
	}
	if leader == nil {
		return BrokerDescriptor{}, &LeaderUnavailableError{Topic: topic, Partition: partition}
	}
	return *leader, nil
}

// Partitions returns the sorted partition ids of topic, loading the topic if needed.
func (client *Client) Partitions(topic string) ([]int32, error) {
	if client.Closed() {
		return nil, ErrClosedClient
	}

	partitions, ok := client.cache.partitionsFor(topic)
	if !ok {
		if err := client.cache.reload(topic); err != nil {
			return nil, err
		}
		partitions, ok = client.cache.partitionsFor(topic)
	}
	if !ok {
		return nil, protocol.ErrUnknownTopicOrPartition
	}
	return partitions, nil
}

// Topics returns the sorted names of the topics whose metadata is cached.
func (client *Client) Topics() ([]string, error) {
	if client.Closed() {
		return nil, ErrClosedClient
	}
	return client.cache.topics(), nil
}

// Brokers returns the brokers of the last metadata reload, sorted by id.
func (client *Client) Brokers() []BrokerDescriptor {
	return client.cache.brokerList()
}

// Close closes every connection of the client and drops its metadata. Calling any other
// method afterwards returns ErrClosedClient.
func (client *Client) Close() error {
	client.lock.Lock()
	defer client.lock.Unlock()

	if client.closed {
		return ErrClosedClient
	}
	client.closed = true

	Logger.Println("Closing Client")
	client.cache.invalidateAll()
	return client.pool.closeAll()
}

// Closed reports whether Close was called.
func (client *Client) Closed() bool {
	client.lock.RLock()
	defer client.lock.RUnlock()

	return client.closed
}

// Clone returns a new client with the same configuration, bootstrap hosts and correlation id
// sequence, and a copy of the cached metadata. Connections are never shared: the clone opens
// its own when it first needs them.
func (client *Client) Clone() *Client {
	return newClient(client.conf, client.hosts, client.correlation, client.cache)
}

// Reinit closes every connection of the client, so that the next request reconnects.
// The cached metadata is kept.
func (client *Client) Reinit() error {
	if client.Closed() {
		return ErrClosedClient
	}
	return client.pool.closeAll()
}

// send dispatches payloads, then checks and transforms the responses in payload order.
func (client *Client) send(payloads []protocol.Block, encode encodeFunc, decode decodeFunc, options *requestOptions) ([]protocol.Response, error) {
	if client.Closed() {
		return nil, ErrClosedClient
	}

	responses, err := client.dispatcher.dispatch(payloads, encode, decode)
	if err != nil {
		return nil, err
	}

	var transformed []interface{}
	if options.callback != nil {
		transformed = make([]interface{}, 0, len(responses))
	}
	for _, resp := range responses {
		if options.failOnError {
			if err := checkResponseError(client.cache, resp); err != nil {
				return nil, err
			}
		}
		if options.callback != nil {
			value, err := options.callback(resp)
			if err != nil {
				return nil, err
			}
			transformed = append(transformed, value)
		}
	}
	if options.results != nil {
		*options.results = transformed
	}
	return responses, nil
}

// SendProduceRequest sends payloads to the leaders of their partitions and returns one
// response block per payload, in the same order. When the required acks are NoResponse the
// brokers do not answer and no blocks are returned.
func (client *Client) SendProduceRequest(payloads []*protocol.ProducePayload, opts ...RequestOption) ([]*protocol.ProduceResponseBlock, error) {
	options := newRequestOptions(client.conf, opts)
	produceOpts := protocol.ProduceOptions{
		RequiredAcks: options.requiredAcks,
		Timeout:      int32(options.produceTimeout / time.Millisecond),
	}

	blocks := make([]protocol.Block, len(payloads))
	for i, payload := range payloads {
		blocks[i] = payload
	}

	encode := func(correlationID int32, group []protocol.Block) ([]byte, error) {
		batch := make([]*protocol.ProducePayload, len(group))
		for i, block := range group {
			batch[i] = block.(*protocol.ProducePayload)
		}
		return protocol.EncodeProduceRequest(client.conf.ClientID, correlationID, batch, produceOpts)
	}

	var decode decodeFunc
	if options.requiredAcks != protocol.NoResponse {
		decode = func(body []byte) ([]protocol.Response, error) {
			decoded, err := protocol.DecodeProduceResponse(body)
			if err != nil {
				return nil, err
			}
			responses := make([]protocol.Response, len(decoded))
			for i, block := range decoded {
				responses[i] = block
			}
			return responses, nil
		}
	}

	responses, err := client.send(blocks, encode, decode, options)
	if err != nil {
		return nil, err
	}

	results := make([]*protocol.ProduceResponseBlock, len(responses))
	for i, resp := range responses {
		results[i] = resp.(*protocol.ProduceResponseBlock)
	}
	return results, nil
}

// SendFetchRequest fetches messages for payloads from the leaders of their partitions and
// returns one response block per payload, in the same order.
func (client *Client) SendFetchRequest(payloads []*protocol.FetchPayload, opts ...RequestOption) ([]*protocol.FetchResponseBlock, error) {
	options := newRequestOptions(client.conf, opts)
	fetchOpts := protocol.FetchOptions{
		MaxWaitTime: int32(options.maxWaitTime / time.Millisecond),
		MinBytes:    options.minBytes,
	}

	blocks := make([]protocol.Block, len(payloads))
	for i, payload := range payloads {
		blocks[i] = payload
	}

	encode := func(correlationID int32, group []protocol.Block) ([]byte, error) {
		batch := make([]*protocol.FetchPayload, len(group))
		for i, block := range group {
			batch[i] = block.(*protocol.FetchPayload)
		}
		return protocol.EncodeFetchRequest(client.conf.ClientID, correlationID, batch, fetchOpts)
	}

	decode := func(body []byte) ([]protocol.Response, error) {
		decoded, err := protocol.DecodeFetchResponse(body)
		if err != nil {
			return nil, err
		}
		responses := make([]protocol.Response, len(decoded))
		for i, block := range decoded {
			responses[i] = block
		}
		return responses, nil
	}

	responses, err := client.send(blocks, encode, decode, options)
	if err != nil {
		return nil, err
	}

	results := make([]*protocol.FetchResponseBlock, len(responses))
	for i, resp := range responses {
		results[i] = resp.(*protocol.FetchResponseBlock)
	}
	return results, nil
}

// SendOffsetRequest asks the leaders of the payloads' partitions for offsets and returns one
// response block per payload, in the same order.
func (client *Client) SendOffsetRequest(payloads []*protocol.OffsetPayload, opts ...RequestOption) ([]*protocol.OffsetResponseBlock, error) {
	options := newRequestOptions(client.conf, opts)

	blocks := make([]protocol.Block, len(payloads))
	for i, payload := range payloads {
		blocks[i] = payload
	}

	encode := func(correlationID int32, group []protocol.Block) ([]byte, error) {
		batch := make([]*protocol.OffsetPayload, len(group))
		for i, block := range group {
			batch[i] = block.(*protocol.OffsetPayload)
		}
		return protocol.EncodeOffsetRequest(client.conf.ClientID, correlationID, batch)
	}

	decode := func(body []byte) ([]protocol.Response, error) {
		decoded, err := protocol.DecodeOffsetResponse(body)
		if err != nil {
			return nil, err
		}
		responses := make([]protocol.Response, len(decoded))
		for i, block := range decoded {
			responses[i] = block
		}
		return responses, nil
	}

	responses, err := client.send(blocks, encode, decode, options)
	if err != nil {
		return nil, err
	}

	results := make([]*protocol.OffsetResponseBlock, len(responses))
	for i, resp := range responses {
		results[i] = resp.(*protocol.OffsetResponseBlock)
	}
	return results, nil
}

// SendOffsetCommitRequest commits the offsets of group for payloads with the leaders of their
// partitions and returns one response block per payload, in the same order.
func (client *Client) SendOffsetCommitRequest(group string, payloads []*protocol.OffsetCommitPayload, opts ...RequestOption) ([]*protocol.OffsetCommitResponseBlock, error) {
	options := newRequestOptions(client.conf, opts)

	blocks := make([]protocol.Block, len(payloads))
	for i, payload := range payloads {
		blocks[i] = payload
	}

	encode := func(correlationID int32, batchBlocks []protocol.Block) ([]byte, error) {
		batch := make([]*protocol.OffsetCommitPayload, len(batchBlocks))
		for i, block := range batchBlocks {
			batch[i] = block.(*protocol.OffsetCommitPayload)
		}
		return protocol.EncodeOffsetCommitRequest(client.conf.ClientID, correlationID, group, batch)
	}

	decode := func(body []byte) ([]protocol.Response, error) {
		decoded, err := protocol.DecodeOffsetCommitResponse(body)
		if err != nil {
			return nil, err
		}
		responses := make([]protocol.Response, len(decoded))
		for i, block := range decoded {
			responses[i] = block
		}
		return responses, nil
	}

	responses, err := client.send(blocks, encode, decode, options)
	if err != nil {
		return nil, err
	}

	results := make([]*protocol.OffsetCommitResponseBlock, len(responses))
	for i, resp := range responses {
		results[i] = resp.(*protocol.OffsetCommitResponseBlock)
	}
	return results, nil
}

// SendOffsetFetchRequest fetches the committed offsets of group for payloads from the leaders of
// their partitions and returns one response block per payload, in the same order.
func (client *Client) SendOffsetFetchRequest(group string, payloads []*protocol.OffsetFetchPayload, opts ...RequestOption) ([]*protocol.OffsetFetchResponseBlock, error) {
	options := newRequestOptions(client.conf, opts)

	blocks := make([]protocol.Block, len(payloads))
	for i, payload := range payloads {
		blocks[i] = payload
	}

	encode := func(correlationID int32, batchBlocks []protocol.Block) ([]byte, error) {
		batch := make([]*protocol.OffsetFetchPayload, len(batchBlocks))
		for i, block := range batchBlocks {
			batch[i] = block.(*protocol.OffsetFetchPayload)
		}
		return protocol.EncodeOffsetFetchRequest(client.conf.ClientID, correlationID, group, batch)
	}

	decode := func(body []byte) ([]protocol.Response, error) {
		decoded, err := protocol.DecodeOffsetFetchResponse(body)
		if err != nil {
			return nil, err
		}
		responses := make([]protocol.Response, len(decoded))
		for i, block := range decoded {
			responses[i] = block
		}
		return responses, nil
	}

	responses, err := client.send(blocks, encode, decode, options)
	if err != nil {
		return nil, err
	}

	results := make([]*protocol.OffsetFetchResponseBlock, len(responses))
	for i, resp := range responses {
		results[i] = resp.(*protocol.OffsetFetchResponseBlock)
	}
	return results, nil
}
