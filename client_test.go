//go:build !functional
// +build !functional

package kroute

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/IBM/kroute/protocol"
)

func metadataResponse(brokers ...*MockBroker) *MockMetadataResponse {
	md := NewMockMetadataResponse()
	for _, broker := range brokers {
		md.SetBroker(broker.Addr(), broker.BrokerID())
	}
	return md
}

func newestOffset(topic string, partition int32) *protocol.OffsetPayload {
	return &protocol.OffsetPayload{Topic: topic, Partition: partition, Time: protocol.OffsetNewest, MaxOffsets: 1}
}

func produceMessage(topic string, partition int32, value string) *protocol.ProducePayload {
	return &protocol.ProducePayload{
		Topic:     topic,
		Partition: partition,
		Messages:  []*protocol.Message{{Value: []byte(value)}},
	}
}

// twoBrokerCluster starts two brokers: seed leads foo/0 and foo/1, other leads bar/0.
func twoBrokerCluster(t *testing.T) (seed, other *MockBroker, md *MockMetadataResponse) {
	seed = NewMockBroker(t, 1)
	other = NewMockBroker(t, 2)

	md = metadataResponse(seed, other).
		SetLeader("foo", 0, seed.BrokerID()).
		SetLeader("foo", 1, seed.BrokerID()).
		SetLeader("bar", 0, other.BrokerID())
	return seed, other, md
}

func TestClientRequiresAddresses(t *testing.T) {
	_, err := NewClient(nil, NewTestConfig())
	var confErr ConfigurationError
	require.ErrorAs(t, err, &confErr)

	_, err = NewClient([]string{"no-port"}, NewTestConfig())
	require.ErrorAs(t, err, &confErr)
}

func TestClientRejectsInvalidConfig(t *testing.T) {
	config := NewTestConfig()
	config.Producer.Timeout = 0

	_, err := NewClient([]string{"localhost:9092"}, config)
	require.Equal(t, ConfigurationError("Producer.Timeout must be > 0"), err)
}

func TestClientLoadsAllMetadataOnCreation(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	topics, err := client.Topics()
	require.NoError(t, err)
	require.Equal(t, []string{"bar", "foo"}, topics)

	partitions, err := client.Partitions("foo")
	require.NoError(t, err)
	require.Equal(t, []int32{0, 1}, partitions)

	leader, err := client.Leader("bar", 0)
	require.NoError(t, err)
	require.Equal(t, other.BrokerID(), leader.ID)
	require.Equal(t, other.Addr(), leader.Addr())

	brokers := client.Brokers()
	require.Len(t, brokers, 2)
	require.Equal(t, seed.BrokerID(), brokers[0].ID)
	require.Equal(t, other.BrokerID(), brokers[1].ID)

	history := seed.History()
	require.Len(t, history, 1)
	require.Equal(t, apiKeyMetadata, history[0].APIKey)
	require.Equal(t, "kroute-test", history[0].ClientID)
	require.Equal(t, 0, other.RequestCount(apiKeyMetadata))
}

func TestClientDispatchKeepsPayloadOrder(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	// answer in a different order than asked
	seed.Returns(NewMockOffsetResponse().SetOffset("foo", 1, 11).SetOffset("foo", 0, 10))
	other.Returns(NewMockOffsetResponse().SetOffset("bar", 0, 20))

	blocks, err := client.SendOffsetRequest([]*protocol.OffsetPayload{
		newestOffset("foo", 0),
		newestOffset("bar", 0),
		newestOffset("foo", 1),
	})
	require.NoError(t, err)
	require.Len(t, blocks, 3, spew.Sdump(blocks))

	expected := []struct {
		topic     string
		partition int32
		offset    int64
	}{
		{"foo", 0, 10},
		{"bar", 0, 20},
		{"foo", 1, 11},
	}
	for i, want := range expected {
		require.Equal(t, want.topic, blocks[i].Topic, spew.Sdump(blocks))
		require.Equal(t, want.partition, blocks[i].Partition, spew.Sdump(blocks))
		require.Equal(t, []int64{want.offset}, blocks[i].Offsets, spew.Sdump(blocks))
	}

	// one request per broker
	require.Equal(t, 1, seed.RequestCount(apiKeyOffsets))
	require.Equal(t, 1, other.RequestCount(apiKeyOffsets))

	registry := client.Config().MetricRegistry
	require.EqualValues(t, 2, metrics.GetOrRegisterMeter("request-rate", registry).Count())
	require.EqualValues(t, 1, getOrRegisterBrokerMeter("request-rate", other.BrokerID(), registry).Count())
}

func TestClientPartialFailureReportsFailedPayloads(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	seedResp := new(protocol.OffsetResponse)
	seedResp.AddTopicPartition("foo", 0, []int64{10}, protocol.ErrNoError)
	seedResp.AddTopicPartition("foo", 1, []int64{11}, protocol.ErrNoError)
	seed.Returns(seedResp)
	other.Expects(&BrokerExpectation{CloseConnection: true})

	payloads := []*protocol.OffsetPayload{
		newestOffset("foo", 0),
		newestOffset("bar", 0),
		newestOffset("foo", 1),
	}
	blocks, err := client.SendOffsetRequest(payloads)
	require.Nil(t, blocks)

	var failed *FailedPayloadsError
	require.ErrorAs(t, err, &failed)
	require.Len(t, failed.Payloads, 1, spew.Sdump(failed.Payloads))
	require.Equal(t, payloads[1], failed.Payloads[0])

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)

	// a transport failure drops everything, not only the topic of the failed broker
	require.False(t, client.HasMetadataForTopic("foo"))
	require.False(t, client.HasMetadataForTopic("bar"))
	require.Len(t, client.Brokers(), 2)

	require.EqualValues(t, 1, metrics.GetOrRegisterCounter("failed-payloads", client.Config().MetricRegistry).Count())
}

func TestClientNotLeaderInvalidatesTopic(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	resp := new(protocol.ProduceResponse)
	resp.AddTopicPartition("foo", 0, 0, protocol.ErrNotLeaderForPartition)
	resp.AddTopicPartition("foo", 1, 5, protocol.ErrNoError)
	seed.Returns(resp)

	_, err = client.SendProduceRequest([]*protocol.ProducePayload{
		produceMessage("foo", 0, "hello"),
		produceMessage("foo", 1, "world"),
	})

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, "foo", respErr.Topic)
	require.Equal(t, int32(0), respErr.Partition)
	require.ErrorIs(t, err, protocol.ErrNotLeaderForPartition)

	require.False(t, client.HasMetadataForTopic("foo"))
	require.True(t, client.HasMetadataForTopic("bar"))
}

func TestClientUnknownTopicInvalidatesTopic(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	resp := new(protocol.FetchResponse)
	resp.AddError("bar", 0, protocol.ErrUnknownTopicOrPartition)
	other.Returns(resp)

	_, err = client.SendFetchRequest([]*protocol.FetchPayload{{Topic: "bar", Partition: 0, Offset: 0, MaxBytes: 1024}})
	require.ErrorIs(t, err, protocol.ErrUnknownTopicOrPartition)
	require.False(t, client.HasMetadataForTopic("bar"))
	require.True(t, client.HasMetadataForTopic("foo"))
}

func TestClientOtherResponseErrorsKeepMetadata(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	resp := new(protocol.OffsetCommitResponse)
	resp.AddError("foo", 0, protocol.ErrOffsetMetadataTooLarge)
	seed.Returns(resp)

	_, err = client.SendOffsetCommitRequest("group", []*protocol.OffsetCommitPayload{
		{Topic: "foo", Partition: 0, Offset: 42, Metadata: "meta"},
	})
	require.ErrorIs(t, err, protocol.ErrOffsetMetadataTooLarge)
	require.True(t, client.HasMetadataForTopic("foo"))
}

func TestClientFailOnErrorDisabled(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	resp := new(protocol.ProduceResponse)
	resp.AddTopicPartition("foo", 0, 0, protocol.ErrNotLeaderForPartition)
	resp.AddTopicPartition("foo", 1, 5, protocol.ErrNoError)
	seed.Returns(resp)

	blocks, err := client.SendProduceRequest([]*protocol.ProducePayload{
		produceMessage("foo", 0, "hello"),
		produceMessage("foo", 1, "world"),
	}, FailOnError(false))
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, protocol.ErrNotLeaderForPartition, blocks[0].Err)
	require.Equal(t, int64(5), blocks[1].Offset)

	// nothing was checked, so nothing was invalidated
	require.True(t, client.HasMetadataForTopic("foo"))
}

func TestClientCallback(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	resp := new(protocol.OffsetFetchResponse)
	resp.AddBlock("foo", 1, 7, "b", protocol.ErrNoError)
	resp.AddBlock("foo", 0, 3, "a", protocol.ErrNoError)
	seed.Returns(resp)
	seed.Returns(resp)

	var seen []string
	record := func(resp protocol.Response) (interface{}, error) {
		topic, partition := resp.TopicPartition()
		seen = append(seen, fmt.Sprintf("%s/%d", topic, partition))
		return nil, nil
	}

	payloads := []*protocol.OffsetFetchPayload{{Topic: "foo", Partition: 0}, {Topic: "foo", Partition: 1}}
	blocks, err := client.SendOffsetFetchRequest("group", payloads, WithCallback(record, nil))
	require.NoError(t, err)
	require.Equal(t, []string{"foo/0", "foo/1"}, seen)
	require.Equal(t, int64(3), blocks[0].Offset)
	require.Equal(t, "b", blocks[1].Metadata)

	errStop := errors.New("stop")
	results := []interface{}{"untouched"}
	_, err = client.SendOffsetFetchRequest("group", payloads, WithCallback(func(resp protocol.Response) (interface{}, error) {
		if _, partition := resp.TopicPartition(); partition == 1 {
			return nil, errStop
		}
		return resp.(*protocol.OffsetFetchResponseBlock).Offset, nil
	}, &results))
	require.ErrorIs(t, err, errStop)
	require.Equal(t, []interface{}{"untouched"}, results)
}

func TestClientCallbackTransformsInPayloadOrder(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	fooResp := new(protocol.OffsetFetchResponse)
	fooResp.AddBlock("foo", 0, 3, "", protocol.ErrNoError)
	fooResp.AddBlock("foo", 1, 7, "", protocol.ErrNoError)
	seed.Returns(fooResp)

	barResp := new(protocol.OffsetFetchResponse)
	barResp.AddBlock("bar", 0, 11, "", protocol.ErrNoError)
	other.Returns(barResp)

	offsetOf := func(resp protocol.Response) (interface{}, error) {
		topic, partition := resp.TopicPartition()
		return fmt.Sprintf("%s/%d@%d", topic, partition, resp.(*protocol.OffsetFetchResponseBlock).Offset), nil
	}

	var results []interface{}
	payloads := []*protocol.OffsetFetchPayload{
		{Topic: "foo", Partition: 1},
		{Topic: "bar", Partition: 0},
		{Topic: "foo", Partition: 0},
	}
	blocks, err := client.SendOffsetFetchRequest("group", payloads, WithCallback(offsetOf, &results))
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	require.Equal(t, []interface{}{"foo/1@7", "bar/0@11", "foo/0@3"}, results)
}

func TestClientIncompleteResponse(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	resp := new(protocol.OffsetResponse)
	resp.AddTopicPartition("foo", 0, []int64{10}, protocol.ErrNoError)
	seed.Returns(resp)

	_, err = client.SendOffsetRequest([]*protocol.OffsetPayload{newestOffset("foo", 0), newestOffset("foo", 1)})
	require.ErrorIs(t, err, ErrIncompleteResponse)
}

func TestClientProduceWithoutAcks(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	received := make(chan struct{})
	seed.Expects(&BrokerExpectation{Before: func() { close(received) }})

	blocks, err := client.SendProduceRequest(
		[]*protocol.ProducePayload{produceMessage("foo", 0, "fire and forget")},
		WithRequiredAcks(protocol.NoResponse),
		WithProduceTimeout(250*time.Millisecond),
	)
	require.NoError(t, err)
	require.Empty(t, blocks)

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("broker never received the produce request")
	}

	history := seed.History()
	last := history[len(history)-1]
	require.Equal(t, apiKeyProduce, last.APIKey)
	// required acks, then the timeout in ms
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0xFA}, last.Body[:6])
}

func TestClientNoLeaderReloadsOnce(t *testing.T) {
	seed := NewMockBroker(t, 1)
	defer seed.Close()

	md := metadataResponse(seed).SetLeader("foo", 0, protocol.NoLeader)
	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	require.True(t, client.HasMetadataForTopic("foo"))

	seed.Returns(md)
	_, err = client.SendFetchRequest([]*protocol.FetchPayload{{Topic: "foo", Partition: 0, MaxBytes: 1024}})

	var leaderErr *LeaderUnavailableError
	require.ErrorAs(t, err, &leaderErr)
	require.Equal(t, "foo", leaderErr.Topic)
	require.ErrorIs(t, err, ErrLeaderUnavailable)

	require.Equal(t, 2, seed.RequestCount(apiKeyMetadata))
	require.Equal(t, 0, seed.RequestCount(apiKeyFetch))
}

func TestClientNoLeaderCooldown(t *testing.T) {
	seed := NewMockBroker(t, 1)
	defer seed.Close()

	md := metadataResponse(seed).SetLeader("foo", 0, protocol.NoLeader)
	seed.Returns(md)

	config := NewTestConfig()
	config.Metadata.ReloadCooldown = time.Minute
	client, err := NewClient([]string{seed.Addr()}, config)
	require.NoError(t, err)
	defer safeClose(t, client)

	_, err = client.Leader("foo", 0)
	require.ErrorIs(t, err, ErrLeaderUnavailable)
	_, err = client.SendFetchRequest([]*protocol.FetchPayload{{Topic: "foo", Partition: 0, MaxBytes: 1024}})
	require.ErrorIs(t, err, ErrLeaderUnavailable)

	require.Equal(t, 1, seed.RequestCount(apiKeyMetadata))
}

func TestClientUnknownPartition(t *testing.T) {
	seed := NewMockBroker(t, 1)
	defer seed.Close()

	md := metadataResponse(seed).SetLeader("foo", 0, seed.BrokerID())
	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	seed.Returns(md)
	_, err = client.SendOffsetRequest([]*protocol.OffsetPayload{newestOffset("foo", 7)})
	require.ErrorIs(t, err, ErrPartitionUnavailable)
	require.Equal(t, 2, seed.RequestCount(apiKeyMetadata))

	seed.Returns(metadataResponse(seed).SetTopicError("missing", protocol.ErrUnknownTopicOrPartition))
	_, err = client.Partitions("missing")
	require.ErrorIs(t, err, protocol.ErrUnknownTopicOrPartition)
}

func TestClientBootstrapFailover(t *testing.T) {
	flaky := NewMockBroker(t, 1)
	defer flaky.Close()
	seed := NewMockBroker(t, 2)
	defer seed.Close()

	flaky.Expects(&BrokerExpectation{CloseConnection: true})
	seed.Returns(metadataResponse(seed))

	client, err := NewClient([]string{deadAddr(t), flaky.Addr(), deadAddr(t), seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	require.Equal(t, 1, flaky.RequestCount(apiKeyMetadata))
	require.Equal(t, 1, seed.RequestCount(apiKeyMetadata))
	require.EqualValues(t, 3, metrics.GetOrRegisterMeter("bootstrap-failover-rate", client.Config().MetricRegistry).Count())
}

func TestClientBootstrapExhausted(t *testing.T) {
	_, err := NewClient([]string{deadAddr(t), deadAddr(t)}, NewTestConfig())
	require.ErrorIs(t, err, ErrClusterUnavailable)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestClientReloadAfterClusterLoss(t *testing.T) {
	seed := NewMockBroker(t, 1)

	md := metadataResponse(seed).SetLeader("foo", 0, seed.BrokerID())
	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	seed.Close()

	err = client.LoadMetadataForTopics("foo")
	require.ErrorIs(t, err, ErrClusterUnavailable)
}

func TestClientResetMetadata(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	client.ResetTopicMetadata("foo")
	client.ResetTopicMetadata("foo", "never-loaded")
	require.False(t, client.HasMetadataForTopic("foo"))
	require.True(t, client.HasMetadataForTopic("bar"))

	client.ResetAllMetadata()
	client.ResetAllMetadata()
	require.False(t, client.HasMetadataForTopic("bar"))

	// a lookup reloads just the topic it needs
	seed.Returns(md)
	leader, err := client.Leader("foo", 1)
	require.NoError(t, err)
	require.Equal(t, seed.BrokerID(), leader.ID)
	require.Equal(t, 2, seed.RequestCount(apiKeyMetadata))
}

func TestClientClose(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)

	require.False(t, client.Closed())
	require.NoError(t, client.Close())
	require.True(t, client.Closed())
	require.ErrorIs(t, client.Close(), ErrClosedClient)

	require.False(t, client.HasMetadataForTopic("foo"))
	require.Zero(t, client.pool.size())

	_, err = client.SendOffsetRequest([]*protocol.OffsetPayload{newestOffset("foo", 0)})
	require.ErrorIs(t, err, ErrClosedClient)
	_, err = client.Topics()
	require.ErrorIs(t, err, ErrClosedClient)
	_, err = client.Leader("foo", 0)
	require.ErrorIs(t, err, ErrClosedClient)
	require.ErrorIs(t, client.LoadMetadataForTopics(), ErrClosedClient)
	require.ErrorIs(t, client.Reinit(), ErrClosedClient)
}

func TestClientClone(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)

	clone := client.Clone()
	require.True(t, clone.HasMetadataForTopic("foo"))
	require.Zero(t, clone.pool.size())

	require.NoError(t, client.Close())
	require.False(t, client.HasMetadataForTopic("foo"))
	require.True(t, clone.HasMetadataForTopic("foo"))

	resp := new(protocol.OffsetResponse)
	resp.AddTopicPartition("foo", 0, []int64{10}, protocol.ErrNoError)
	seed.Returns(resp)

	blocks, err := clone.SendOffsetRequest([]*protocol.OffsetPayload{newestOffset("foo", 0)})
	require.NoError(t, err)
	require.Equal(t, []int64{10}, blocks[0].Offsets)

	// the clone keeps drawing from the same correlation id sequence
	history := seed.History()
	require.Len(t, history, 2)
	require.Greater(t, history[1].CorrelationID, history[0].CorrelationID)

	safeClose(t, clone)
}

func TestClientReinit(t *testing.T) {
	seed, other, md := twoBrokerCluster(t)
	defer other.Close()
	defer seed.Close()

	seed.Returns(md)

	client, err := NewClient([]string{seed.Addr()}, NewTestConfig())
	require.NoError(t, err)
	defer safeClose(t, client)

	require.Equal(t, 1, client.pool.size())
	require.NoError(t, client.Reinit())
	require.Zero(t, client.pool.size())
	require.True(t, client.HasMetadataForTopic("foo"))

	resp := new(protocol.OffsetResponse)
	resp.AddTopicPartition("foo", 0, []int64{10}, protocol.ErrNoError)
	seed.Returns(resp)

	_, err = client.SendOffsetRequest([]*protocol.OffsetPayload{newestOffset("foo", 0)})
	require.NoError(t, err)
	require.Equal(t, 1, client.pool.size())
}
