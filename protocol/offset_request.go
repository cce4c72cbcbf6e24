package protocol

import "github.com/IBM/kroute/encoding"

// OffsetPayload asks for up to MaxOffsets offsets of one topic/partition before Time.
type OffsetPayload struct {
	Topic      string
	Partition  int32
	Time       OffsetTime
	MaxOffsets int32
}

func (p *OffsetPayload) TopicPartition() (string, int32) {
	return p.Topic, p.Partition
}

type offsetRequest struct {
	payloads []*OffsetPayload
}

func (r *offsetRequest) Encode(pe encoding.PacketEncoder) error {
	pe.PutInt32(-1) // replica ID is always -1 for clients

	topics, members := groupByTopic(len(r.payloads), func(i int) string { return r.payloads[i].Topic })
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
			payload := r.payloads[i]
			pe.PutInt32(payload.Partition)
			pe.PutInt64(int64(payload.Time))
			pe.PutInt32(payload.MaxOffsets)
		}
	}
	return nil
}

func (r *offsetRequest) key() int16 {
	return apiKeyListOffsets
}

func (r *offsetRequest) version() int16 {
	return 0
}

// EncodeOffsetRequest encodes payloads into a single framed list offsets request.
func EncodeOffsetRequest(clientID string, correlationID int32, payloads []*OffsetPayload) ([]byte, error) {
	return encodeRequest(clientID, correlationID, &offsetRequest{payloads: payloads})
}
