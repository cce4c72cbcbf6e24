package protocol

import "github.com/IBM/kroute/encoding"

// FetchPayload asks for messages of one topic/partition starting at Offset.
type FetchPayload struct {
	Topic     string
	Partition int32
	Offset    int64
	MaxBytes  int32
}

func (p *FetchPayload) TopicPartition() (string, int32) {
	return p.Topic, p.Partition
}

// FetchOptions are the request level fields of a fetch request. MaxWaitTime is in milliseconds.
type FetchOptions struct {
	MaxWaitTime int32
	MinBytes    int32
}

type fetchRequest struct {
	FetchOptions
	payloads []*FetchPayload
}

func (r *fetchRequest) Encode(pe encoding.PacketEncoder) error {
	pe.PutInt32(-1) // replica ID is always -1 for clients
	pe.PutInt32(r.MaxWaitTime)
	pe.PutInt32(r.MinBytes)

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
			pe.PutInt64(payload.Offset)
			pe.PutInt32(payload.MaxBytes)
		}
	}
	return nil
}

func (r *fetchRequest) key() int16 {
	return apiKeyFetch
}

func (r *fetchRequest) version() int16 {
	return 0
}

// EncodeFetchRequest encodes payloads into a single framed fetch request.
func EncodeFetchRequest(clientID string, correlationID int32, payloads []*FetchPayload, opts FetchOptions) ([]byte, error) {
	return encodeRequest(clientID, correlationID, &fetchRequest{FetchOptions: opts, payloads: payloads})
}
