package protocol

import (
	"errors"
	"fmt"

	"github.com/IBM/kroute/encoding"
)

// MessageBlock is a message together with its offset in the partition log.
type MessageBlock struct {
	Offset int64
	Msg    *Message
}

func (msb *MessageBlock) Encode(pe encoding.PacketEncoder) error {
	pe.PutInt64(msb.Offset)
	pe.Push(&encoding.LengthField{})
	err := msb.Msg.Encode(pe)
	if err != nil {
		return err
	}
	return pe.Pop()
}

func (msb *MessageBlock) Decode(pd encoding.PacketDecoder) (err error) {
	msb.Offset, err = pd.GetInt64()
	if err != nil {
		return err
	}

	size, err := pd.GetInt32()
	if err != nil {
		return err
	}

	sub, err := pd.GetSubset(int(size))
	if err != nil {
		return err
	}

	msb.Msg = new(Message)
	if err = msb.Msg.Decode(sub); err != nil {
		return err
	}
	if sub.Remaining() != 0 {
		return encoding.PacketDecodingError{Info: fmt.Sprintf("message size %d overstates its contents by %d bytes", size, sub.Remaining())}
	}

	return nil
}

// Messages flattens a compressed wrapper into the blocks it carries.
func (msb *MessageBlock) Messages() []*MessageBlock {
	if msb.Msg.Set != nil {
		return msb.Msg.Set.Flatten()
	}
	return []*MessageBlock{msb}
}

// MessageSet is the unframed sequence of message blocks used by produce requests and fetch responses.
type MessageSet struct {
	PartialTrailingMessage bool // whether the set on the wire contained an incomplete trailing MessageBlock
	Messages               []*MessageBlock
}

func (ms *MessageSet) Encode(pe encoding.PacketEncoder) error {
	for i := range ms.Messages {
		err := ms.Messages[i].Encode(pe)
		if err != nil {
			return err
		}
	}
	return nil
}

func (ms *MessageSet) Decode(pd encoding.PacketDecoder) (err error) {
	ms.Messages = nil

	for pd.Remaining() > 0 {
		msb := new(MessageBlock)
		err = msb.Decode(pd)
		switch {
		case err == nil:
			ms.Messages = append(ms.Messages, msb)
		case errors.Is(err, encoding.ErrInsufficientData):
			// As an optimization the server is allowed to return a partial message at the
			// end of the message set. Clients should handle this case. So we just ignore such things.
			ms.PartialTrailingMessage = true
			return nil
		default:
			return err
		}
	}

	return nil
}

// AddMessage appends msg with a zero offset; the broker assigns real offsets on produce.
func (ms *MessageSet) AddMessage(msg *Message) {
	block := new(MessageBlock)
	block.Msg = msg
	ms.Messages = append(ms.Messages, block)
}

// Flatten returns every message in the set, expanding compressed wrappers.
func (ms *MessageSet) Flatten() []*MessageBlock {
	var blocks []*MessageBlock
	for _, msb := range ms.Messages {
		blocks = append(blocks, msb.Messages()...)
	}
	return blocks
}
