package protocol

import "github.com/IBM/kroute/encoding"

type OffsetCommitResponseBlock struct {
	Topic     string
	Partition int32
	Err       KError
}

func (b *OffsetCommitResponseBlock) TopicPartition() (string, int32) {
	return b.Topic, b.Partition
}

func (b *OffsetCommitResponseBlock) ErrorCode() KError {
	return b.Err
}

type OffsetCommitResponse struct {
	Blocks []*OffsetCommitResponseBlock
}

func (r *OffsetCommitResponse) Decode(pd encoding.PacketDecoder) error {
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
			block := &OffsetCommitResponseBlock{Topic: name}
			if block.Partition, err = pd.GetInt32(); err != nil {
				return err
			}
			tmp, err := pd.GetInt16()
			if err != nil {
				return err
			}
			block.Err = KError(tmp)
			r.Blocks = append(r.Blocks, block)
		}
	}

	return nil
}

func (r *OffsetCommitResponse) Encode(pe encoding.PacketEncoder) error {
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
			pe.PutInt32(r.Blocks[i].Partition)
			pe.PutInt16(int16(r.Blocks[i].Err))
		}
	}
	return nil
}

// AddError appends a block carrying err.
func (r *OffsetCommitResponse) AddError(topic string, partition int32, err KError) {
	r.Blocks = append(r.Blocks, &OffsetCommitResponseBlock{Topic: topic, Partition: partition, Err: err})
}

// DecodeOffsetCommitResponse decodes an offset commit response body (everything after the correlation id).
func DecodeOffsetCommitResponse(data []byte) ([]*OffsetCommitResponseBlock, error) {
	response := new(OffsetCommitResponse)
	if err := encoding.Decode(data, response); err != nil {
		return nil, err
	}
	return response.Blocks, nil
}
