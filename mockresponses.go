package kroute

import (
	"sort"

	"github.com/IBM/kroute/encoding"
	"github.com/IBM/kroute/protocol"
)

// MockMetadataResponse is a `MetadataResponse` builder. It can be handed to MockBroker.Returns
// as is, and lists brokers, topics and partitions in ascending order.
type MockMetadataResponse struct {
	leaders map[string]map[int32]int32
	brokers map[string]int32
	errors  map[string]protocol.KError
}

// NewMockMetadataResponse returns an empty MockMetadataResponse.
func NewMockMetadataResponse() *MockMetadataResponse {
	return &MockMetadataResponse{
		leaders: make(map[string]map[int32]int32),
		brokers: make(map[string]int32),
		errors:  make(map[string]protocol.KError),
	}
}

// SetLeader makes brokerID the leader of topic/partition. A brokerID of protocol.NoLeader
// describes a partition without leader.
func (mmr *MockMetadataResponse) SetLeader(topic string, partition, brokerID int32) *MockMetadataResponse {
	partitions := mmr.leaders[topic]
	if partitions == nil {
		partitions = make(map[int32]int32)
		mmr.leaders[topic] = partitions
	}
	partitions[partition] = brokerID
	return mmr
}

// SetBroker adds the broker brokerID listening on addr.
func (mmr *MockMetadataResponse) SetBroker(addr string, brokerID int32) *MockMetadataResponse {
	mmr.brokers[addr] = brokerID
	return mmr
}

// SetTopicError lists topic with err and no partitions.
func (mmr *MockMetadataResponse) SetTopicError(topic string, err protocol.KError) *MockMetadataResponse {
	mmr.errors[topic] = err
	return mmr
}

// Response builds the MetadataResponse described so far.
func (mmr *MockMetadataResponse) Response() *protocol.MetadataResponse {
	response := new(protocol.MetadataResponse)

	addrs := make([]string, 0, len(mmr.brokers))
	for addr := range mmr.brokers {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return mmr.brokers[addrs[i]] < mmr.brokers[addrs[j]] })
	for _, addr := range addrs {
		response.AddBroker(addr, mmr.brokers[addr])
	}

	topics := make([]string, 0, len(mmr.leaders)+len(mmr.errors))
	for topic := range mmr.leaders {
		topics = append(topics, topic)
	}
	for topic := range mmr.errors {
		if _, ok := mmr.leaders[topic]; !ok {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)

	for _, topic := range topics {
		if err, ok := mmr.errors[topic]; ok {
			response.AddTopic(topic, err)
			continue
		}

		partitions := make([]int32, 0, len(mmr.leaders[topic]))
		for partition := range mmr.leaders[topic] {
			partitions = append(partitions, partition)
		}
		sort.Sort(int32Slice(partitions))

		for _, partition := range partitions {
			leader := mmr.leaders[topic][partition]
			kerr := protocol.ErrNoError
			var replicas []int32
			if leader == protocol.NoLeader {
				kerr = protocol.ErrLeaderNotAvailable
			} else {
				replicas = []int32{leader}
			}
			response.AddTopicPartition(topic, partition, leader, replicas, replicas, kerr)
		}
	}
	return response
}

func (mmr *MockMetadataResponse) Encode(pe encoding.PacketEncoder) error {
	return mmr.Response().Encode(pe)
}

// MockOffsetResponse is an `OffsetResponse` builder answering every partition with one offset.
type MockOffsetResponse struct {
	offsets map[string]map[int32]int64
	order   []TopicPartition
}

// NewMockOffsetResponse returns an empty MockOffsetResponse.
func NewMockOffsetResponse() *MockOffsetResponse {
	return &MockOffsetResponse{offsets: make(map[string]map[int32]int64)}
}

// SetOffset answers topic/partition with offset. Blocks are encoded in the order they were set.
func (mor *MockOffsetResponse) SetOffset(topic string, partition int32, offset int64) *MockOffsetResponse {
	partitions := mor.offsets[topic]
	if partitions == nil {
		partitions = make(map[int32]int64)
		mor.offsets[topic] = partitions
	}
	if _, ok := partitions[partition]; !ok {
		mor.order = append(mor.order, TopicPartition{Topic: topic, Partition: partition})
	}
	partitions[partition] = offset
	return mor
}

func (mor *MockOffsetResponse) Encode(pe encoding.PacketEncoder) error {
	response := new(protocol.OffsetResponse)
	for _, tp := range mor.order {
		response.AddTopicPartition(tp.Topic, tp.Partition, []int64{mor.offsets[tp.Topic][tp.Partition]}, protocol.ErrNoError)
	}
	return response.Encode(pe)
}
