package protocol

import "github.com/IBM/kroute/encoding"

type OffsetResponseBlock struct {
	Topic     string
	Partition int32
	Err       KError
	Offsets   []int64
}

func (b *OffsetResponseBlock) TopicPartition() (string, int32) {
	return b.Topic, b.Partition
}

func (b *OffsetResponseBlock) ErrorCode() KError {
	return b.Err
}

type OffsetResponse struct {
	Blocks []*OffsetResponseBlock
}

func (r *OffsetResponse) Decode(pd encoding.PacketDecoder) error {
	numTopics, err := pd.GetArrayLength()
	if err != nil {
		return err
	}

	r.Blocks = nil
	for i := 0; i < numTopics; i++ {
		name, err := pd.GetString()
		if err != nil {
			return err
		}

		numBlocks, err := pd.GetArrayLength()
		if err != nil {
			return err
		}

		for j := 0; j < numBlocks; j++ {
			block := &OffsetResponseBlock{Topic: name}
			if block.Partition, err = pd.GetInt32(); err != nil {
				return err
			}
			tmp, err := pd.GetInt16()
			if err != nil {
				return err
			}
			block.Err = KError(tmp)
			if block.Offsets, err = pd.GetInt64Array(); err != nil {
				return err
			}
			r.Blocks = append(r.Blocks, block)
		}
	}

	return nil
}

func (r *OffsetResponse) Encode(pe encoding.PacketEncoder) error {
	topics, members := groupByTopic(len(r.Blocks), func(i int) string { return r.Blocks[i].Topic })
	err := pe.PutArrayLength(len(topics))
	if err != nil {
		return err
	}
	for _, topic := range topics {
		if err = pe.PutString(topic); err != nil {
			return err
		}
		if err = pe.PutArrayLength(len(members[topic])); err != nil {
			return err
		}
		for _, i := range members[topic] {
			block := r.Blocks[i]
			pe.PutInt32(block.Partition)
			pe.PutInt16(int16(block.Err))
			if err = pe.PutInt64Array(block.Offsets); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetBlock returns the block for topic/partition, or nil if the response has none.
func (r *OffsetResponse) GetBlock(topic string, partition int32) *OffsetResponseBlock {
	for _, block := range r.Blocks {
		if block.Topic == topic && block.Partition == partition {
			return block
		}
	}
	return nil
}

// AddTopicPartition appends a block, mostly for building canned responses.
func (r *OffsetResponse) AddTopicPartition(topic string, partition int32, offsets []int64, err KError) {
	r.Blocks = append(r.Blocks, &OffsetResponseBlock{Topic: topic, Partition: partition, Offsets: offsets, Err: err})
}

// DecodeOffsetResponse decodes a list offsets response body (everything after the correlation id).
func DecodeOffsetResponse(data []byte) ([]*OffsetResponseBlock, error) {
	response := new(OffsetResponse)
	if err := encoding.Decode(data, response); err != nil {
		return nil, err
	}
	return response.Blocks, nil
}
