package protocol

import "github.com/IBM/kroute/encoding"

type OffsetFetchResponseBlock struct {
	Topic     string
	Partition int32
	Offset    int64
	Metadata  string
	Err       KError
}

func (b *OffsetFetchResponseBlock) TopicPartition() (string, int32) {
	return b.Topic, b.Partition
}

func (b *OffsetFetchResponseBlock) ErrorCode() KError {
	return b.Err
}

type OffsetFetchResponse struct {
	Blocks []*OffsetFetchResponseBlock
}

func (r *OffsetFetchResponse) Decode(pd encoding.PacketDecoder) error {
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
			block := &OffsetFetchResponseBlock{Topic: name}
			if block.Partition, err = pd.GetInt32(); err != nil {
				return err
			}
			if block.Offset, err = pd.GetInt64(); err != nil {
				return err
			}
			if block.Metadata, err = pd.GetString(); err != nil {
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

func (r *OffsetFetchResponse) Encode(pe encoding.PacketEncoder) error {
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
			pe.PutInt64(block.Offset)
			if err = pe.PutString(block.Metadata); err != nil {
				return err
			}
			pe.PutInt16(int16(block.Err))
		}
	}
	return nil
}

// AddBlock appends a block, mostly for building canned responses.
func (r *OffsetFetchResponse) AddBlock(topic string, partition int32, offset int64, metadata string, err KError) {
	r.Blocks = append(r.Blocks, &OffsetFetchResponseBlock{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Metadata:  metadata,
		Err:       err,
	})
}

// DecodeOffsetFetchResponse decodes an offset fetch response body (everything after the correlation id).
func DecodeOffsetFetchResponse(data []byte) ([]*OffsetFetchResponseBlock, error) {
	response := new(OffsetFetchResponse)
	if err := encoding.Decode(data, response); err != nil {
		return nil, err
	}
	return response.Blocks, nil
}
