package bluez

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/internal/profile"
	"github.com/srg/scolink/sco"
)

type recordedEvent struct {
	kind   string
	audio  sco.AudioEvent
	device *accessory.Descriptor
}

// recordingSink captures adapter notifications in delivery order.
type recordingSink struct {
	events []recordedEvent
}

func (s *recordingSink) OnAudioEvent(ev sco.AudioEvent) {
	s.events = append(s.events, recordedEvent{kind: "audio", audio: ev})
}

func (s *recordingSink) SetActiveDevice(dev *accessory.Descriptor) {
	s.events = append(s.events, recordedEvent{kind: "active", device: dev})
}

func (s *recordingSink) OnProfileConnected(id profile.ID, handle profile.Handle) {
	s.events = append(s.events, recordedEvent{kind: "profileConnected"})
}

func (s *recordingSink) OnProfileDisconnected(id profile.ID) {
	s.events = append(s.events, recordedEvent{kind: "profileDisconnected"})
}

func testAdapter() (*Adapter, *recordingSink) {
	bus := testBus()
	sink := &recordingSink{}
	return NewAdapter(bus, sink, bus.logger), sink
}

func connectedSignal(path dbus.ObjectPath, connected bool) *dbus.Signal {
	return &dbus.Signal{
		Name: propsSignal,
		Path: path,
		Body: []interface{}{
			deviceIface,
			map[string]dbus.Variant{"Connected": dbus.MakeVariant(connected)},
			[]string{},
		},
	}
}

func TestDeviceConnectedPromotesBeforeAudio(t *testing.T) {
	adapter, sink := testAdapter()
	adapter.bus.Seed(accessory.New("AA:BB:CC:DD:EE:FF", "HS", accessory.ClassWearableHeadset))

	adapter.handleSignal(connectedSignal("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", true))

	require.Len(t, sink.events, 2)
	assert.Equal(t, "active", sink.events[0].kind,
		"routing target must be set before the audio event lands")
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", sink.events[0].device.Address)
	assert.Equal(t, "audio", sink.events[1].kind)
	assert.Equal(t, profile.AudioConnected, sink.events[1].audio.Status)
}

func TestDeviceDisconnectedClearsActive(t *testing.T) {
	adapter, sink := testAdapter()
	path := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	adapter.handleSignal(connectedSignal(path, true))
	sink.events = nil

	adapter.handleSignal(connectedSignal(path, false))

	require.Len(t, sink.events, 2)
	assert.Equal(t, "audio", sink.events[0].kind)
	assert.Equal(t, profile.AudioDisconnected, sink.events[0].audio.Status)
	assert.Equal(t, "active", sink.events[1].kind)
	assert.Nil(t, sink.events[1].device)
}

func TestDisconnectOfOtherDeviceKeepsActive(t *testing.T) {
	adapter, sink := testAdapter()
	adapter.handleSignal(connectedSignal("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01", true))
	sink.events = nil

	adapter.handleSignal(connectedSignal("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02", false))

	require.Len(t, sink.events, 1, "only the audio event, no routing change")
	assert.Equal(t, "audio", sink.events[0].kind)
}

func TestSignalsOutsideAdapterIgnored(t *testing.T) {
	adapter, sink := testAdapter()

	adapter.handleSignal(connectedSignal("/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF", true))

	assert.Empty(t, sink.events)
}

func TestNonDeviceInterfaceIgnored(t *testing.T) {
	adapter, sink := testAdapter()

	adapter.handleSignal(&dbus.Signal{
		Name: propsSignal,
		Path: "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		Body: []interface{}{
			adapterIface,
			map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)},
			[]string{},
		},
	})

	assert.Empty(t, sink.events)
}

func TestInterfacesAddedCachesDescriptor(t *testing.T) {
	adapter, _ := testAdapter()

	adapter.handleSignal(&dbus.Signal{
		Name: objManIface + ".InterfacesAdded",
		Path: "/",
		Body: []interface{}{
			dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"),
			map[string]map[string]dbus.Variant{
				deviceIface: {
					"Alias": dbus.MakeVariant("My Headset"),
					"Class": dbus.MakeVariant(uint32(accessory.ClassWearableHeadset)),
				},
			},
		},
	})

	cached := adapter.bus.lookup("AA:BB:CC:DD:EE:FF")
	assert.Equal(t, "My Headset", cached.Name)
}

func TestServiceHandleCarriesProfile(t *testing.T) {
	adapter, _ := testAdapter()

	assert.Equal(t, profile.A2DP, adapter.handleFor(profile.A2DP).Profile())

	headset := adapter.handleFor(profile.Headset)
	assert.Equal(t, profile.Headset, headset.Profile())
	_, ok := headset.(profile.HeadsetProxy)
	assert.True(t, ok, "the headset handle must carry commands")
}
