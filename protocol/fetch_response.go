package protocol

import "github.com/IBM/kroute/encoding"

type FetchResponseBlock struct {
	Topic               string
	Partition           int32
	Err                 KError
	HighWaterMarkOffset int64
	MsgSet              MessageSet
}

func (b *FetchResponseBlock) TopicPartition() (string, int32) {
	return b.Topic, b.Partition
}

func (b *FetchResponseBlock) ErrorCode() KError {
	return b.Err
}

// Messages returns the fetched messages with compressed wrappers expanded.
func (b *FetchResponseBlock) Messages() []*MessageBlock {
	return b.MsgSet.Flatten()
}

func (b *FetchResponseBlock) decode(pd encoding.PacketDecoder) (err error) {
	if b.Partition, err = pd.GetInt32(); err != nil {
		return err
	}

	tmp, err := pd.GetInt16()
	if err != nil {
		return err
	}
	b.Err = KError(tmp)

	if b.HighWaterMarkOffset, err = pd.GetInt64(); err != nil {
		return err
	}

	msgSetSize, err := pd.GetInt32()
	if err != nil {
		return err
	}

	msgSetDecoder, err := pd.GetSubset(int(msgSetSize))
	if err != nil {
		return err
	}

	return b.MsgSet.Decode(msgSetDecoder)
}

func (b *FetchResponseBlock) encode(pe encoding.PacketEncoder) error {
	pe.PutInt32(b.Partition)
	pe.PutInt16(int16(b.Err))
	pe.PutInt64(b.HighWaterMarkOffset)

	pe.Push(&encoding.LengthField{})
	if err := b.MsgSet.Encode(pe); err != nil {
		return err
	}
	return pe.Pop()
}

type FetchResponse struct {
	Blocks []*FetchResponseBlock
}

func (r *FetchResponse) Decode(pd encoding.PacketDecoder) error {
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
			block := &FetchResponseBlock{Topic: name}
			if err = block.decode(pd); err != nil {
				return err
			}
			r.Blocks = append(r.Blocks, block)
		}
	}

	return nil
}

func (r *FetchResponse) Encode(pe encoding.PacketEncoder) error {
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
			if err = r.Blocks[i].encode(pe); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetBlock returns the block for topic/partition, or nil if the response has none.
func (r *FetchResponse) GetBlock(topic string, partition int32) *FetchResponseBlock {
	for _, block := range r.Blocks {
		if block.Topic == topic && block.Partition == partition {
			return block
		}
	}
	return nil
}

// AddError appends an empty block carrying err.
func (r *FetchResponse) AddError(topic string, partition int32, err KError) {
	r.Blocks = append(r.Blocks, &FetchResponseBlock{Topic: topic, Partition: partition, Err: err})
}

// AddMessage appends msg at offset to the topic/partition block, creating it if needed.
func (r *FetchResponse) AddMessage(topic string, partition int32, key, value []byte, offset int64) {
	block := r.GetBlock(topic, partition)
	if block == nil {
		block = &FetchResponseBlock{Topic: topic, Partition: partition}
		r.Blocks = append(r.Blocks, block)
	}
	block.MsgSet.Messages = append(block.MsgSet.Messages, &MessageBlock{
		Offset: offset,
		Msg:    &Message{Key: key, Value: value},
	})
	if offset >= block.HighWaterMarkOffset {
		block.HighWaterMarkOffset = offset + 1
	}
}

// DecodeFetchResponse decodes a fetch response body (everything after the correlation id).
func DecodeFetchResponse(data []byte) ([]*FetchResponseBlock, error) {
	response := new(FetchResponse)
	if err := encoding.Decode(data, response); err != nil {
		return nil, err
	}
	return response.Blocks, nil
}
