package protocol

import "github.com/IBM/kroute/encoding"

// OffsetCommitPayload commits Offset (and optional Metadata) for one topic/partition of a consumer group.
type OffsetCommitPayload struct {
	Topic     string
	Partition int32
	Offset    int64
	Metadata  string
}

func (p *OffsetCommitPayload) TopicPartition() (string, int32) {
	return p.Topic, p.Partition
}

type offsetCommitRequest struct {
	group    string
	payloads []*OffsetCommitPayload
}

func (r *offsetCommitRequest) Encode(pe encoding.PacketEncoder) error {
	err := pe.PutString(r.group)
	if err != nil {
		return err
	}

	topics, members := groupByTopic(len(r.payloads), func(i int) string { return r.payloads[i].Topic })
	if err = pe.PutArrayLength(len(topics)); err != nil {
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
			payload := r.payloads[i]
			pe.PutInt32(payload.Partition)
			pe.PutInt64(payload.Offset)
			if err = pe.PutString(payload.Metadata); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *offsetCommitRequest) key() int16 {
	return apiKeyOffsetCommit
}

func (r *offsetCommitRequest) version() int16 {
	return 0
}

// EncodeOffsetCommitRequest encodes payloads into a single framed offset commit request for group.
func EncodeOffsetCommitRequest(clientID string, correlationID int32, group string, payloads []*OffsetCommitPayload) ([]byte, error) {
	return encodeRequest(clientID, correlationID, &offsetCommitRequest{group: group, payloads: payloads})
}
