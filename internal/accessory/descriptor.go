// Package accessory normalizes raw Bluetooth device identity into the
// routing-relevant descriptor used by the SCO core.
package accessory

import "fmt"

// PlaceholderAddress is the reserved null address standing in for "some
// accessory is active" in routing notifications. Collapsing every physical
// member of a pair/group onto this single identity guarantees the routing
// layer sees exactly one add and one remove per logical active device.
const PlaceholderAddress = "00:00:00:00:00:00"

// Bluetooth Class of Device values for the audio/video major class members
// the SCO core routes differently.
const (
	ClassWearableHeadset = 0x0404
	ClassHandsfree       = 0x0408
	ClassCarAudio        = 0x0420
)

// Group index bounds for multi-member (more than two endpoints) accessories.
const (
	groupIndexMin = 0
	groupIndexMax = 15
)

// NoGroup marks a descriptor that is not part of a multi-member group.
const NoGroup = -1

// Transport is the SCO transport flavor derived from the device class.
type Transport int

const (
	TransportGeneric Transport = iota
	TransportHeadset
	TransportCarkit
)

func (t Transport) String() string {
	switch t {
	case TransportHeadset:
		return "headset"
	case TransportCarkit:
		return "carkit"
	default:
		return "generic"
	}
}

// Descriptor identifies one physical accessory endpoint. Immutable once
// built; the zero value is not valid, use New.
type Descriptor struct {
	Address     string
	Name        string
	Class       uint32
	PeerAddress string // other member of a stereo pair, empty if none
	GroupIndex  int    // 0..15 for group accessories, NoGroup otherwise
}

// New builds a descriptor from raw identity. Out-of-range group indexes are
// normalized to NoGroup so classification never sees garbage.
func New(address, name string, class uint32) *Descriptor {
	return &Descriptor{
		Address:    address,
		Name:       name,
		Class:      class,
		GroupIndex: NoGroup,
	}
}

// WithPeer returns a copy carrying the stereo-pair peer address.
func (d *Descriptor) WithPeer(peerAddress string) *Descriptor {
	c := *d
	c.PeerAddress = peerAddress
	return &c
}

// WithGroup returns a copy carrying the group index, normalized to NoGroup
// when out of the valid range.
func (d *Descriptor) WithGroup(index int) *Descriptor {
	c := *d
	if index < groupIndexMin || index > groupIndexMax {
		index = NoGroup
	}
	c.GroupIndex = index
	return &c
}

// Placeholder returns the reserved descriptor used for routing bookkeeping.
func Placeholder() *Descriptor {
	return &Descriptor{Address: PlaceholderAddress, GroupIndex: NoGroup}
}

// IsPlaceholder reports whether d carries the reserved null address.
func (d *Descriptor) IsPlaceholder() bool {
	return d != nil && d.Address == PlaceholderAddress
}

// IsPairedMember reports whether d is one half of a stereo pair.
func (d *Descriptor) IsPairedMember() bool {
	return d != nil && d.PeerAddress != ""
}

// IsGroupMember reports whether d belongs to a multi-member group.
func (d *Descriptor) IsGroupMember() bool {
	return d != nil && d.GroupIndex >= groupIndexMin && d.GroupIndex <= groupIndexMax
}

// Groupable reports whether d must be gated through the audio-path tracker:
// either half of a pair or any member of a group.
func (d *Descriptor) Groupable() bool {
	return d.IsPairedMember() || d.IsGroupMember()
}

// IsPairedWith reports whether addr is the pair peer of d.
func (d *Descriptor) IsPairedWith(addr string) bool {
	return d.IsPairedMember() && addr != "" && d.PeerAddress == addr
}

// Transport classifies the SCO transport from the device class.
func (d *Descriptor) Transport() Transport {
	if d == nil || d.IsPlaceholder() {
		return TransportGeneric
	}
	switch d.Class {
	case ClassWearableHeadset, ClassHandsfree:
		return TransportHeadset
	case ClassCarAudio:
		return TransportCarkit
	default:
		return TransportGeneric
	}
}

// Equal compares descriptors by address, treating nil as "no accessory".
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Address == other.Address
}

// AnonymizedAddress renders the address with the vendor prefix masked, for
// log output. Nil renders as "(none)".
func (d *Descriptor) AnonymizedAddress() string {
	if d == nil {
		return "(none)"
	}
	if len(d.Address) < 9 {
		return d.Address
	}
	return "XX:XX:XX:" + d.Address[9:]
}

func (d *Descriptor) String() string {
	if d == nil {
		return "(none)"
	}
	if d.IsPlaceholder() {
		return "placeholder"
	}
	return fmt.Sprintf("%s (%s)", d.AnonymizedAddress(), d.Transport())
}
