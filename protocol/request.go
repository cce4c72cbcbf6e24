package protocol

import "github.com/IBM/kroute/encoding"

type requestBody interface {
	encoding.Encoder
	key() int16
	version() int16
}

type request struct {
	correlationID int32
	clientID      string
	body          requestBody
}

func (r *request) Encode(pe encoding.PacketEncoder) error {
	pe.Push(&encoding.LengthField{})
	pe.PutInt16(r.body.key())
	pe.PutInt16(r.body.version())
	pe.PutInt32(r.correlationID)
	err := pe.PutString(r.clientID)
	if err != nil {
		return err
	}
	err = r.body.Encode(pe)
	if err != nil {
		return err
	}
	return pe.Pop()
}

// encodeRequest frames body with the size-prefixed v0 request header.
func encodeRequest(clientID string, correlationID int32, body requestBody) ([]byte, error) {
	return encoding.Encode(&request{correlationID: correlationID, clientID: clientID, body: body})
}
