package protocol

import "github.com/IBM/kroute/encoding"

// OffsetFetchPayload asks for the committed offset of one topic/partition of a consumer group.
type OffsetFetchPayload struct {
	Topic     string
	Partition int32
}

func (p *OffsetFetchPayload) TopicPartition() (string, int32) {
	return p.Topic, p.Partition
}

type offsetFetchRequest struct {
	group    string
	payloads []*OffsetFetchPayload
}

func (r *offsetFetchRequest) Encode(pe encoding.PacketEncoder) error {
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
		partitions := make([]int32, 0, len(members[topic]))
		for _, i := range members[topic] {
			partitions = append(partitions, r.payloads[i].Partition)
		}
		if err = pe.PutInt32Array(partitions); err != nil {
			return err
		}
	}
	return nil
}

func (r *offsetFetchRequest) key() int16 {
	return apiKeyOffsetFetch
}

func (r *offsetFetchRequest) version() int16 {
	return 0
}

// EncodeOffsetFetchRequest encodes payloads into a single framed offset fetch request for group.
func EncodeOffsetFetchRequest(clientID string, correlationID int32, group string, payloads []*OffsetFetchPayload) ([]byte, error) {
	return encodeRequest(clientID, correlationID, &offsetFetchRequest{group: group, payloads: payloads})
}
