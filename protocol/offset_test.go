package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	offsetRequestOneBlock = []byte{
		0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x03, 'f', 'o', 'o',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x04,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x00, 0x00, 0x02,
	}

	offsetResponseTwoOffsets = []byte{
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x01, 'z',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
	}

	offsetCommitRequestOneBlock = []byte{
		0x00, 0x01, 'g',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x01, 't',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A,
		0x00, 0x02, 'm', 'd',
	}

	offsetCommitResponseOneError = []byte{
		0x00, 0x00, 0x00, 0x02,

		0x00, 0x01, 'm',
		0x00, 0x00, 0x00, 0x00,

		0x00, 0x01, 't',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x06,
	}

	offsetFetchRequestTwoPartitions = []byte{
		0x00, 0x01, 'g',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x01, 't',
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x01,
	}

	offsetFetchResponseOneBlock = []byte{
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x01, 't',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10,
		0x00, 0x02, 'm', 'd',
		0x00, 0x03,
	}
)

func TestOffsetRequestEncoding(t *testing.T) {
	request := &offsetRequest{payloads: []*OffsetPayload{
		{Topic: "foo", Partition: 4, Time: OffsetNewest, MaxOffsets: 2},
	}}

	testEncodable(t, "one block", request, offsetRequestOneBlock)
}

func TestOffsetResponseDecoding(t *testing.T) {
	blocks, err := DecodeOffsetResponse(offsetResponseTwoOffsets)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, &OffsetResponseBlock{Topic: "z", Partition: 2, Err: ErrNoError, Offsets: []int64{5, 1}}, blocks[0])
}

func TestOffsetCommitRequestEncoding(t *testing.T) {
	request := &offsetCommitRequest{group: "g", payloads: []*OffsetCommitPayload{
		{Topic: "t", Partition: 1, Offset: 42, Metadata: "md"},
	}}

	testEncodable(t, "one block", request, offsetCommitRequestOneBlock)
}

func TestOffsetCommitResponseDecoding(t *testing.T) {
	blocks, err := DecodeOffsetCommitResponse(offsetCommitResponseOneError)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, "t", blocks[0].Topic)
	require.Equal(t, int32(0), blocks[0].Partition)
	require.Equal(t, ErrNotLeaderForPartition, blocks[0].ErrorCode())
}

func TestOffsetFetchRequestEncoding(t *testing.T) {
	request := &offsetFetchRequest{group: "g", payloads: []*OffsetFetchPayload{
		{Topic: "t", Partition: 0},
		{Topic: "t", Partition: 1},
	}}

	testEncodable(t, "two partitions", request, offsetFetchRequestTwoPartitions)
}

func TestOffsetFetchResponseDecoding(t *testing.T) {
	blocks, err := DecodeOffsetFetchResponse(offsetFetchResponseOneBlock)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, &OffsetFetchResponseBlock{
		Topic:    "t",
		Offset:   16,
		Metadata: "md",
		Err:      ErrUnknownTopicOrPartition,
	}, blocks[0])

	response := new(OffsetFetchResponse)
	response.AddBlock("t", 0, 16, "md", ErrUnknownTopicOrPartition)
	testEncodable(t, "one block", response, offsetFetchResponseOneBlock)
}
