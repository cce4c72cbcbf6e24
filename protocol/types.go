package protocol

import "fmt"

const (
	apiKeyProduce      int16 = 0
	apiKeyFetch        int16 = 1
	apiKeyListOffsets  int16 = 2
	apiKeyMetadata     int16 = 3
	apiKeyOffsetCommit int16 = 8
	apiKeyOffsetFetch  int16 = 9
)

// RequiredAcks is used in Produce Requests to tell the broker how many replica acknowledgements
// it must see before responding. Any positive int16 value is valid, or the constants defined here.
type RequiredAcks int16

const (
	// NoResponse doesn't send any response, the TCP ACK is all you get.
	NoResponse RequiredAcks = 0
	// WaitForLocal waits for only the local commit to succeed before responding.
	WaitForLocal RequiredAcks = 1
	// WaitForAll waits for all in-sync replicas to commit before responding.
	WaitForAll RequiredAcks = -1
)

// CompressionCodec represents the various compression codecs recognized by Kafka in messages.
type CompressionCodec int8

const (
	// CompressionNone no compression
	CompressionNone CompressionCodec = iota
	// CompressionGZIP compression using GZIP
	CompressionGZIP
	// CompressionSnappy compression using snappy
	CompressionSnappy
	// CompressionLZ4 compression using LZ4
	CompressionLZ4
	// CompressionZSTD compression using ZSTD
	CompressionZSTD

	// compressionCodecMask is the mask of the attribute bits carrying the codec
	compressionCodecMask int8 = 0x07
)

var codecNames = []string{
	"none",
	"gzip",
	"snappy",
	"lz4",
	"zstd",
}

func (cc CompressionCodec) String() string {
	if cc < 0 || int(cc) >= len(codecNames) {
		return fmt.Sprintf("CompressionCodec(%d)", int8(cc))
	}
	return codecNames[cc]
}

// UnmarshalText returns a CompressionCodec from its string representation.
func (cc *CompressionCodec) UnmarshalText(text []byte) error {
	for i, name := range codecNames {
		if name == string(text) {
			*cc = CompressionCodec(i)
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as a compression codec", string(text))
}

// OffsetTime is used in Offset Requests to ask for all messages before a certain time. Any positive int64
// value will be interpreted as milliseconds, or use the special constants defined here.
type OffsetTime int64

const (
	// OffsetNewest asks for the offset of the next message that will be produced.
	OffsetNewest OffsetTime = -1
	// OffsetOldest asks for the earliest available offset. Note that because offsets are pulled in
	// descending order, asking for the earliest offset will always return you a single element.
	OffsetOldest OffsetTime = -2
)
