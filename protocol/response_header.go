package protocol

import (
	"fmt"

	"github.com/IBM/kroute/encoding"
)

// ResponseHeaderSize is the on-wire size of a ResponseHeader: the frame length and the correlation id.
const ResponseHeaderSize = 8

// ResponseHeader is the prefix of every response frame. Length counts the bytes following
// the length field itself, so it includes the correlation id.
type ResponseHeader struct {
	Length        int32
	CorrelationID int32
}

func (r *ResponseHeader) Decode(pd encoding.PacketDecoder) (err error) {
	r.Length, err = pd.GetInt32()
	if err != nil {
		return err
	}
	if r.Length < 4 || r.Length > encoding.MaxResponseSize {
		return encoding.PacketDecodingError{Info: fmt.Sprintf("message of length %d too large or too small", r.Length)}
	}

	r.CorrelationID, err = pd.GetInt32()
	return err
}

func (r *ResponseHeader) Encode(pe encoding.PacketEncoder) error {
	pe.PutInt32(r.Length)
	pe.PutInt32(r.CorrelationID)
	return nil
}
