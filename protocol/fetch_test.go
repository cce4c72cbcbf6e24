package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	fetchRequestTwoTopics = []byte{
		0xFF, 0xFF, 0xFF, 0xFF, // replica id
		0x00, 0x00, 0x00, 0x64, // max wait
		0x00, 0x00, 0x00, 0x01, // min bytes
		0x00, 0x00, 0x00, 0x02, // topics

		0x00, 0x01, 'a',
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
		0x00, 0x00, 0x04, 0x00,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x07,
		0x00, 0x00, 0x10, 0x00,

		0x00, 0x01, 'b',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x06,
		0x00, 0x00, 0x08, 0x00,
	}

	fetchResponseOneMessage = []byte{
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x01, 't',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x03, // partition
		0x00, 0x00, // no error
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, // high water mark
		0x00, 0x00, 0x00, 0x22, // message set size
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, // offset
		0x00, 0x00, 0x00, 0x12, // message size
		0x2A, 0xC6, 0xC2, 0xB4, // crc
		0x00, 0x00, // magic, attributes
		0x00, 0x00, 0x00, 0x01, 'k',
		0x00, 0x00, 0x00, 0x03, 'f', 'o', 'o',
		0x00, 0x00, 0x00, 0x00, // start of a partial trailing message
	}
)

func TestFetchRequestGroupsPayloadsByTopic(t *testing.T) {
	request := &fetchRequest{
		FetchOptions: FetchOptions{MaxWaitTime: 100, MinBytes: 1},
		payloads: []*FetchPayload{
			{Topic: "a", Partition: 0, Offset: 5, MaxBytes: 1024},
			{Topic: "b", Partition: 1, Offset: 6, MaxBytes: 2048},
			{Topic: "a", Partition: 2, Offset: 7, MaxBytes: 4096},
		},
	}

	testEncodable(t, "two topics", request, fetchRequestTwoTopics)
}

func TestFetchResponseDecoding(t *testing.T) {
	blocks, err := DecodeFetchResponse(fetchResponseOneMessage)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	block := blocks[0]
	topic, partition := block.TopicPartition()
	require.Equal(t, "t", topic)
	require.Equal(t, int32(3), partition)
	require.Equal(t, ErrNoError, block.ErrorCode())
	require.Equal(t, int64(16), block.HighWaterMarkOffset)
	require.True(t, block.MsgSet.PartialTrailingMessage)

	msgs := block.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, int64(5), msgs[0].Offset)
	require.Equal(t, []byte("k"), msgs[0].Msg.Key)
	require.Equal(t, []byte("foo"), msgs[0].Msg.Value)
}

func TestFetchResponseBuilder(t *testing.T) {
	response := new(FetchResponse)
	response.AddMessage("t", 3, []byte("k"), []byte("foo"), 5)
	response.AddError("u", 0, ErrOffsetOutOfRange)

	blocks, err := DecodeFetchResponse(mustEncode(t, response))
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, int64(6), blocks[0].HighWaterMarkOffset)
	require.Equal(t, []byte("foo"), blocks[0].Messages()[0].Msg.Value)
	require.False(t, blocks[0].MsgSet.PartialTrailingMessage)
	require.Equal(t, ErrOffsetOutOfRange, blocks[1].Err)
	require.Empty(t, blocks[1].Messages())
}
