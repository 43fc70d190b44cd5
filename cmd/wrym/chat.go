package main

import (
	"time"

	cbor "github.com/fxamacker/cbor/v2"
)

// ChatMessage is the payload the demo server relays between clients.
type ChatMessage struct {
	From   string    `cbor:"1,keyasint"`
	Text   string    `cbor:"2,keyasint"`
	SentAt time.Time `cbor:"3,keyasint"`
}

type chatCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newChatCodec() (chatCodec, error) {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano

	em, err := opts.EncMode()
	if err != nil {
		return chatCodec{}, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return chatCodec{}, err
	}
	return chatCodec{enc: em, dec: dm}, nil
}

func (c chatCodec) encode(m ChatMessage) ([]byte, error) {
	return c.enc.Marshal(m)
}

func (c chatCodec) decode(data []byte) (ChatMessage, error) {
	var m ChatMessage
	err := c.dec.Unmarshal(data, &m)
	return m, err
}
