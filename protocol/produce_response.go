package protocol

import "github.com/IBM/kroute/encoding"

type ProduceResponseBlock struct {
	Topic     string
	Partition int32
	Err       KError
	Offset    int64
}

func (b *ProduceResponseBlock) TopicPartition() (string, int32) {
	return b.Topic, b.Partition
}

func (b *ProduceResponseBlock) ErrorCode() KError {
	return b.Err
}

type ProduceResponse struct {
	Blocks []*ProduceResponseBlock
}

func (r *ProduceResponse) Decode(pd encoding.PacketDecoder) error {
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
			block := &ProduceResponseBlock{Topic: name}
			if block.Partition, err = pd.GetInt32(); err != nil {
				return err
			}
			tmp, err := pd.GetInt16()
			if err != nil {
				return err
			}
			block.Err = KError(tmp)
			if block.Offset, err = pd.GetInt64(); err != nil {
				return err
			}
			r.Blocks = append(r.Blocks, block)
		}
	}

	return nil
}

func (r *ProduceResponse) Encode(pe encoding.PacketEncoder) error {
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
			pe.PutInt64(block.Offset)
		}
	}
	return nil
}

// GetBlock returns the block for topic/partition, or nil if the response has none.
func (r *ProduceResponse) GetBlock(topic string, partition int32) *ProduceResponseBlock {
	for _, block := range r.Blocks {
		if block.Topic == topic && block.Partition == partition {
			return block
		}
	}
	return nil
}

// AddTopicPartition appends a block, mostly for building canned responses.
func (r *ProduceResponse) AddTopicPartition(topic string, partition int32, offset int64, err KError) {
	r.Blocks = append(r.Blocks, &ProduceResponseBlock{Topic: topic, Partition: partition, Offset: offset, Err: err})
}

// DecodeProduceResponse decodes a produce response body (everything after the correlation id).
func DecodeProduceResponse(data []byte) ([]*ProduceResponseBlock, error) {
	response := new(ProduceResponse)
	if err := encoding.Decode(data, response); err != nil {
		return nil, err
	}
	return response.Blocks, nil
}
