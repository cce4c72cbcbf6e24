package protocol

import "github.com/IBM/kroute/encoding"

// ProducePayload is a batch of messages bound for one topic/partition. A Codec other than
// CompressionNone wraps the messages into a single compressed message on the wire.
type ProducePayload struct {
	Topic     string
	Partition int32
	Messages  []*Message
	Codec     CompressionCodec
}

func (p *ProducePayload) TopicPartition() (string, int32) {
	return p.Topic, p.Partition
}

func (p *ProducePayload) messageSet() *MessageSet {
	set := new(MessageSet)
	for _, msg := range p.Messages {
		set.AddMessage(msg)
	}
	if p.Codec == CompressionNone || len(p.Messages) == 0 {
		return set
	}

	wrapped := new(MessageSet)
	wrapped.AddMessage(&Message{Codec: p.Codec, Set: set})
	return wrapped
}

// ProduceOptions are the request level fields of a produce request. Timeout is in milliseconds.
type ProduceOptions struct {
	RequiredAcks RequiredAcks
	Timeout      int32
}

type produceRequest struct {
	ProduceOptions
	payloads []*ProducePayload
}

func (r *produceRequest) Encode(pe encoding.PacketEncoder) error {
	pe.PutInt16(int16(r.RequiredAcks))
	pe.PutInt32(r.Timeout)

	topics, members := groupByTopic(len(r.payloads), func(i int) string { return r.payloads[i].Topic })
	err := pe.PutArrayLength(len(topics))
	if err != nil {
		return err
	}
	for _, topic := range topics {
		err = pe.PutString(topic)
		if err != nil {
			return err
		}
		err = pe.PutArrayLength(len(members[topic]))
		if err != nil {
			return err
		}
		for _, i := range members[topic] {
			payload := r.payloads[i]
			pe.PutInt32(payload.Partition)
			pe.Push(&encoding.LengthField{})
			err = payload.messageSet().Encode(pe)
			if err != nil {
				return err
			}
			err = pe.Pop()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *produceRequest) key() int16 {
	return apiKeyProduce
}

func (r *produceRequest) version() int16 {
	return 0
}

// EncodeProduceRequest encodes payloads into a single framed produce request.
func EncodeProduceRequest(clientID string, correlationID int32, payloads []*ProducePayload, opts ProduceOptions) ([]byte, error) {
	return encodeRequest(clientID, correlationID, &produceRequest{ProduceOptions: opts, payloads: payloads})
}
