package protocol

import (
	"encoding/binary"
)

// MsgID is the leading 32-bit identifier of every datagram.
type MsgID uint32

// Datagram identifiers.
const (
	MsgDiscover     MsgID = 0x01
	MsgAnnounce     MsgID = 0x02
	MsgConnect      MsgID = 0x03
	MsgSubscription MsgID = 0x04
	MsgMouseMove    MsgID = 0x10
	MsgMouseButton  MsgID = 0x11
	MsgVisibility   MsgID = 0x12
)

// Wire sizes, identifier included.
const (
	idSize           = 4
	SizeDiscover     = idSize
	SizeAnnounce     = idSize + 4 + 2
	SizeConnect      = idSize
	SizeSubscription = idSize + 16
	SizeMouseMove    = idSize + 4 + 8
	SizeMouseButton  = idSize + 4 + 2
	SizeVisibility   = idSize + 4 + 2

	// MaxPacketSize bounds the read buffers of every receive loop.
	MaxPacketSize = 64
)

func (id MsgID) String() string {
	switch id {
	case MsgDiscover:
		return "discover"
	case MsgAnnounce:
		return "announce"
	case MsgConnect:
		return "connect"
	case MsgSubscription:
		return "subscription"
	case MsgMouseMove:
		return "mouse_move"
	case MsgMouseButton:
		return "mouse_button"
	case MsgVisibility:
		return "visibility"
	}
	return "unknown"
}

// IsState reports whether the message carries mouse state and a sequence number
// that receivers must gate on.
func (id MsgID) IsState() bool {
	return id == MsgMouseMove || id == MsgMouseButton || id == MsgVisibility
}

// Rect is the region of the pad's global coordinate space a subscriber wants
// to receive, as sent in a Subscription.
type Rect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

// Empty reports whether the rect covers no area.
func (r Rect) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Packet is one decoded datagram. Only the fields of its Type are meaningful.
//
// Wire format (big-endian) per type:
//
//	Discover     (0x01): id                                      =  4 bytes
//	Announce     (0x02): id + seq(u32) + port(u16)               = 10 bytes
//	Connect      (0x03): id                                      =  4 bytes
//	Subscription (0x04): id + left(i32) + top(i32) + w(u32) + h(u32) = 20 bytes
//	MouseMove    (0x10): id + seq(u32) + x(i32) + y(i32)         = 16 bytes
//	MouseButton  (0x11): id + seq(u32) + button(u8) + down(u8)   = 10 bytes
//	Visibility   (0x12): id + seq(u32) + visible(u16)            = 10 bytes
type Packet struct {
	Type     MsgID
	Seq      uint32
	X        int32  // mouse move
	Y        int32  // mouse move
	Button   Button // mouse button
	Down     bool   // mouse button
	Visible  bool   // visibility
	Port     uint16 // announce
	Viewport Rect   // subscription
}

// Size returns the fixed wire size of the packet's type, or 0 for an unknown type.
func (id MsgID) Size() int {
	switch id {
	case MsgDiscover:
		return SizeDiscover
	case MsgAnnounce:
		return SizeAnnounce
	case MsgConnect:
		return SizeConnect
	case MsgSubscription:
		return SizeSubscription
	case MsgMouseMove:
		return SizeMouseMove
	case MsgMouseButton:
		return SizeMouseButton
	case MsgVisibility:
		return SizeVisibility
	}
	return 0
}

// Encode serializes a packet. An unknown type encodes to its bare identifier.
func Encode(pkt *Packet) []byte {
	size := pkt.Type.Size()
	if size == 0 {
		size = idSize
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(pkt.Type))

	body := buf[idSize:]
	switch pkt.Type {
	case MsgAnnounce:
		binary.BigEndian.PutUint32(body[0:4], pkt.Seq)
		binary.BigEndian.PutUint16(body[4:6], pkt.Port)
	case MsgSubscription:
		binary.BigEndian.PutUint32(body[0:4], uint32(pkt.Viewport.Left))
		binary.BigEndian.PutUint32(body[4:8], uint32(pkt.Viewport.Top))
		binary.BigEndian.PutUint32(body[8:12], pkt.Viewport.Width)
		binary.BigEndian.PutUint32(body[12:16], pkt.Viewport.Height)
	case MsgMouseMove:
		binary.BigEndian.PutUint32(body[0:4], pkt.Seq)
		binary.BigEndian.PutUint32(body[4:8], uint32(pkt.X))
		binary.BigEndian.PutUint32(body[8:12], uint32(pkt.Y))
	case MsgMouseButton:
		binary.BigEndian.PutUint32(body[0:4], pkt.Seq)
		body[4] = EncodeButton(pkt.Button)
		if pkt.Down {
			body[5] = 1
		}
	case MsgVisibility:
		binary.BigEndian.PutUint32(body[0:4], pkt.Seq)
		if pkt.Visible {
			binary.BigEndian.PutUint16(body[4:6], 1)
		}
	}

	return buf
}

// Decode parses a datagram. It reports false for buffers that are too short
// for their identifier or carry an unknown identifier. Trailing bytes are ignored.
func Decode(data []byte) (Packet, bool) {
	if len(data) < idSize {
		return Packet{}, false
	}

	pkt := Packet{Type: MsgID(binary.BigEndian.Uint32(data[0:4]))}
	size := pkt.Type.Size()
	if size == 0 || len(data) < size {
		return Packet{}, false
	}

	body := data[idSize:]
	switch pkt.Type {
	case MsgAnnounce:
		pkt.Seq = binary.BigEndian.Uint32(body[0:4])
		pkt.Port = binary.BigEndian.Uint16(body[4:6])
	case MsgSubscription:
		pkt.Viewport = Rect{
			Left:   int32(binary.BigEndian.Uint32(body[0:4])),
			Top:    int32(binary.BigEndian.Uint32(body[4:8])),
			Width:  binary.BigEndian.Uint32(body[8:12]),
			Height: binary.BigEndian.Uint32(body[12:16]),
		}
	case MsgMouseMove:
		pkt.Seq = binary.BigEndian.Uint32(body[0:4])
		pkt.X = int32(binary.BigEndian.Uint32(body[4:8]))
		pkt.Y = int32(binary.BigEndian.Uint32(body[8:12]))
	case MsgMouseButton:
		pkt.Seq = binary.BigEndian.Uint32(body[0:4])
		pkt.Button = DecodeButton(body[4])
		pkt.Down = body[5] != 0
	case MsgVisibility:
		pkt.Seq = binary.BigEndian.Uint32(body[0:4])
		pkt.Visible = binary.BigEndian.Uint16(body[4:6]) != 0
	}

	return pkt, true
}
