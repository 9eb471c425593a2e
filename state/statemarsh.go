package state

import (
	"bufio"
	"encoding/binary"
	"io"
)

type byteReader interface {
	io.Reader
	ReadByte() (c byte, err error)
}

func (t *Key) Marshal(wire io.Writer) {
	var b [10]byte
	bs := b[:]
	klen := int64(len(*t))
	if wlen := binary.PutVarint(bs, klen); wlen >= 0 {
		wire.Write(b[0:wlen])
	}
	wire.Write([]byte(*t))
}

func (t *Key) Unmarshal(rr io.Reader) error {
	var wire byteReader
	var ok bool
	if wire, ok = rr.(byteReader); !ok {
		wire = bufio.NewReader(rr)
	}
	klen, err := binary.ReadVarint(wire)
	if err != nil {
		return err
	}
	kbuf := make([]byte, klen)
	if _, err := io.ReadAtLeast(wire, kbuf, int(klen)); err != nil {
		return err
	}
	*t = Key(kbuf)
	return nil
}

func (t *Value) Marshal(wire io.Writer) {
	var b [10]byte
	bs := b[:]
	vlen := int64(len(*t))
	if wlen := binary.PutVarint(bs, vlen); wlen >= 0 {
		wire.Write(b[0:wlen])
	}
	wire.Write([]byte(*t))
}

func (t *Value) Unmarshal(rr io.Reader) error {
	var wire byteReader
	var ok bool
	if wire, ok = rr.(byteReader); !ok {
		wire = bufio.NewReader(rr)
	}
	vlen, err := binary.ReadVarint(wire)
	if err != nil {
		return err
	}
	vbuf := make([]byte, vlen)
	if _, err := io.ReadAtLeast(wire, vbuf, int(vlen)); err != nil {
		return err
	}
	*t = Value(vbuf)
	return nil
}

func (t *Command) Marshal(wire io.Writer) {
	var b [1]byte
	b[0] = byte(t.Op)
	wire.Write(b[:1])
	t.K.Marshal(wire)
	t.V.Marshal(wire)
}

func (t *Command) Unmarshal(rr io.Reader) error {
	var wire byteReader
	var ok bool
	if wire, ok = rr.(byteReader); !ok {
		wire = bufio.NewReader(rr)
	}
	var b [1]byte
	if _, err := io.ReadAtLeast(wire, b[:1], 1); err != nil {
		return err
	}
	t.Op = Operation(b[0])
	if err := t.K.Unmarshal(wire); err != nil {
		return err
	}
	return t.V.Unmarshal(wire)
}
