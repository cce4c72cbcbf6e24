package protocol

import (
	"fmt"

	"github.com/IBM/kroute/encoding"
)

// The only message format this codec speaks. Magic byte 0 is the original 0.8 format.
const messageFormat int8 = 0

// Message is a single v0 message. A compressed message carries an entire inner message set as its value;
// set Set to produce one, or leave Set nil to compress Value as-is.
type Message struct {
	Codec CompressionCodec // codec used to compress the message contents
	Key   []byte           // the message key, may be nil
	Value []byte           // the message contents
	Set   *MessageSet      // the message set a message might wrap

	compressedCache []byte
}

func (m *Message) Encode(pe encoding.PacketEncoder) error {
	pe.Push(&encoding.CRC32Field{})

	pe.PutInt8(messageFormat)

	attributes := int8(m.Codec) & compressionCodecMask
	pe.PutInt8(attributes)

	err := pe.PutBytes(m.Key)
	if err != nil {
		return err
	}

	var payload []byte
	if m.compressedCache != nil {
		payload = m.compressedCache
		m.compressedCache = nil
	} else if m.Codec == CompressionNone {
		payload = m.Value
	} else {
		raw := m.Value
		if m.Set != nil {
			if raw, err = encoding.Encode(m.Set); err != nil {
				return err
			}
		}
		if payload, err = compress(m.Codec, raw); err != nil {
			return err
		}
		// the prep pass computes the payload, the real pass consumes it
		m.compressedCache = payload
	}

	if err = pe.PutBytes(payload); err != nil {
		return err
	}

	return pe.Pop()
}

func (m *Message) Decode(pd encoding.PacketDecoder) (err error) {
	err = pd.Push(&encoding.CRC32Field{})
	if err != nil {
		return err
	}

	format, err := pd.GetInt8()
	if err != nil {
		return err
	}
	if format != messageFormat {
		return encoding.PacketDecodingError{Info: fmt.Sprintf("unsupported message format (%d)", format)}
	}

	attribute, err := pd.GetInt8()
	if err != nil {
		return err
	}
	m.Codec = CompressionCodec(attribute & compressionCodecMask)

	m.Key, err = pd.GetBytes()
	if err != nil {
		return err
	}

	m.Value, err = pd.GetBytes()
	if err != nil {
		return err
	}

	err = pd.Pop()
	if err != nil {
		return err
	}

	switch m.Codec {
	case CompressionNone:
		// nothing to do
	default:
		if m.Value == nil {
			return encoding.PacketDecodingError{Info: fmt.Sprintf("%s compression specified, but no data to uncompress", m.Codec)}
		}
		if m.Value, err = decompress(m.Codec, m.Value); err != nil {
			return err
		}
		m.Set = new(MessageSet)
		if err := encoding.Decode(m.Value, m.Set); err != nil {
			return err
		}
	}

	return nil
}
