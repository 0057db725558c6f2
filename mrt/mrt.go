// Package mrt supports BGP data in MRT format (RFC6396)
package mrt

import (
	"io"
	"time"

	"github.com/bgpstream-engine/bgpstream/binary"
)

// Mrt represents a bare-bones MRT message (rfc6396/2).
type Mrt struct {
	// internal
	buf []byte // internal buffer

	Time time.Time // message timestamp
	Type Type      // message type
	Sub  Sub       // message subtype
	Data []byte    // message data (referenced or owned), can be nil

	Upper Type // which of the upper layers is valid?
	Bgp4  Bgp4 // BGP4MP or BGP4MP_ET
}

// MRT message type, see https://www.iana.org/assignments/mrt/mrt.xhtml
type Type uint16

//go:generate go run github.com/dmarkham/enumer -type Type
const (
	INVALID Type = 0

	OSPF2    Type = 11
	OSPF3    Type = 48
	OSPF3_ET Type = 49

	TABLE_DUMP  Type = 12
	TABLE_DUMP2 Type = 13

	BGP4MP    Type = 16
	BGP4MP_ET Type = 17

	ISIS    Type = 32
	ISIS_ET Type = 33
)

// IsET returns true iff t is of Extended Timestamp type
func (t Type) IsET() bool {
	switch t {
	case BGP4MP_ET, OSPF3_ET, ISIS_ET:
		return true
	default:
		return false
	}
}

// IsBGP4 returns true iff t is of BGP4MP type
func (t Type) IsBGP4() bool {
	switch t {
	case BGP4MP, BGP4MP_ET:
		return true
	default:
		return false
	}
}

// MRT message subtype, see https://www.iana.org/assignments/mrt/mrt.xhtml
type Sub uint16

//go:generate go run github.com/dmarkham/enumer -type Sub

// MRT header length
const HEADLEN = 12 // = timestamp(4) + type(2) + subtype (2) + length (4)

var (
	msb = binary.Msb
)

// NewMrt returns new empty message
func NewMrt() *Mrt {
	mrt := new(Mrt)
	mrt.Bgp4.Init(mrt)
	return mrt
}

// Reset clears the message
func (mrt *Mrt) Reset() *Mrt {
	if cap(mrt.buf) < 1024*1024 {
		mrt.buf = mrt.buf[:0] // NB: re-use iff < 1MiB
	} else {
		mrt.buf = nil
	}

	mrt.Time = time.Time{}
	mrt.Type = 0
	mrt.Sub = 0
	mrt.Data = nil

	switch mrt.Upper {
	case BGP4MP, BGP4MP_ET:
		mrt.Bgp4.Reset()
	}
	mrt.Upper = INVALID

	return mrt
}

// FromBytes parses the MRT message in raw. Does not copy.
// Returns the number of parsed bytes from raw.
func (mrt *Mrt) FromBytes(raw []byte) (off int, err error) {
	// enough bytes for header?
	if len(raw) < HEADLEN {
		return off, io.ErrUnexpectedEOF
	}
	data := raw

	// read
	ts := msb.Uint32(data[0:4])
	typ := msb.Uint16(data[4:6])
	sub := msb.Uint16(data[6:8])
	l := int(msb.Uint32(data[8:12]))
	off += 12
	data = raw[off:]

	// enough bytes for data?
	if len(data) < l {
		return off, io.ErrUnexpectedEOF
	}

	// write to mrt
	mrt.Time = time.Unix(int64(ts), 0).UTC()
	mrt.Type = Type(typ)
	mrt.Sub = Sub(sub)
	mrt.Data = nil
	off += l

	// extended timestamp?
	if mrt.Type.IsET() {
		if l < 4 {
			return off, ErrShort
		}
		us := msb.Uint32(data[0:4])
		mrt.Time = mrt.Time.Add(time.Microsecond * time.Duration(us))
		data = data[4:]
		l -= 4
	}

	// reference data (borrowed from raw, not copied)
	mrt.Data = data[:l]

	// needs fresh Parse()
	mrt.Upper = INVALID

	// done!
	return off, nil
}

// Parse parses mrt.Data into the upper layer iff needed.
func (mrt *Mrt) Parse() error {
	if mrt.Upper != INVALID {
		return nil // assume already done
	} else if mrt.Data == nil {
		return ErrNoData
	}

	var err error
	switch mrt.Type {
	case BGP4MP, BGP4MP_ET:
		bgp4 := &mrt.Bgp4
		err = bgp4.Parse()
		if err != nil {
			break
		}
	default:
		err = ErrType
	}

	if err == nil {
		mrt.Upper = mrt.Type
	}

	return err
}

