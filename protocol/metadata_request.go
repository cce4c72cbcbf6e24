package protocol

import "github.com/IBM/kroute/encoding"

type metadataRequest struct {
	topics []string
}

func (r *metadataRequest) Encode(pe encoding.PacketEncoder) error {
	err := pe.PutArrayLength(len(r.topics))
	if err != nil {
		return err
	}
	for _, topic := range r.topics {
		if err = pe.PutString(topic); err != nil {
			return err
		}
	}
	return nil
}

func (r *metadataRequest) key() int16 {
	return apiKeyMetadata
}

func (r *metadataRequest) version() int16 {
	return 0
}

// EncodeMetadataRequest encodes a framed metadata request. No topics means all topics.
func EncodeMetadataRequest(clientID string, correlationID int32, topics []string) ([]byte, error) {
	return encodeRequest(clientID, correlationID, &metadataRequest{topics: topics})
}
