// Package bluez backs the SCO core's profile-proxy interfaces with BlueZ
// over the system D-Bus: commands go out as Device1 profile calls, accessory
// status comes back as PropertiesChanged signals translated into broker
// events.
package bluez

import (
	"fmt"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/scolink/internal/accessory"
)

const (
	busName      = "org.bluez"
	deviceIface  = "org.bluez.Device1"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
	propsSignal  = "org.freedesktop.DBus.Properties.PropertiesChanged"
	objManIface  = "org.freedesktop.DBus.ObjectManager"

	// HFPProfileUUID is the Hands-Free Profile (HF role) service UUID used
	// for headset connect/disconnect commands.
	HFPProfileUUID = "0000111e-0000-1000-8000-00805f9b34fb"
)

// Bus wraps the system D-Bus connection for BlueZ operations and caches the
// descriptors it has seen. The cache is concurrent: the signal-watch
// goroutine writes while command paths read.
type Bus struct {
	conn    *dbus.Conn
	adapter string
	logger  *logrus.Logger

	devices *hashmap.Map[string, *accessory.Descriptor]
}

// NewBus connects to the system bus and verifies BlueZ is present.
func NewBus(adapter string, logger *logrus.Logger) (*Bus, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if adapter == "" {
		adapter = "hci0"
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		_ = conn.Close()
		return nil, fmt.Errorf("org.bluez not found on system bus, is bluetooth.service running?")
	}
	return &Bus{
		conn:    conn,
		adapter: adapter,
		logger:  logger,
		devices: hashmap.New[string, *accessory.Descriptor](),
	}, nil
}

// Close releases the bus connection.
func (b *Bus) Close() error {
	return b.conn.Close()
}

func adapterPath(adapter string) string {
	return "/org/bluez/" + adapter
}

// deviceObjectPath converts "AA:BB:CC:DD:EE:FF" to
// "/org/bluez/<adapter>/dev_AA_BB_CC_DD_EE_FF".
func deviceObjectPath(adapter, addr string) dbus.ObjectPath {
	return dbus.ObjectPath(adapterPath(adapter) + "/dev_" + strings.ReplaceAll(addr, ":", "_"))
}

// addressFromPath extracts the device address from a BlueZ object path,
// returning "" for paths outside this adapter.
func addressFromPath(adapter string, path dbus.ObjectPath) string {
	prefix := adapterPath(adapter) + "/dev_"
	s := string(path)
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	return strings.ReplaceAll(s[len(prefix):], "_", ":")
}

func (b *Bus) adapterPath() string {
	return adapterPath(b.adapter)
}

func (b *Bus) deviceObjectPath(addr string) dbus.ObjectPath {
	return deviceObjectPath(b.adapter, addr)
}

func (b *Bus) addressFromPath(path dbus.ObjectPath) string {
	return addressFromPath(b.adapter, path)
}

func (b *Bus) getProp(path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := b.conn.Object(busName, path)
	var v dbus.Variant
	err := obj.Call(propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (b *Bus) deviceConnected(addr string) (bool, error) {
	v, err := b.getProp(b.deviceObjectPath(addr), deviceIface, "Connected")
	if err != nil {
		return false, err
	}
	connected, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("Connected property is not bool")
	}
	return connected, nil
}

// connectProfile asks BlueZ to bring up one profile on the device.
func (b *Bus) connectProfile(addr, uuid string) error {
	obj := b.conn.Object(busName, b.deviceObjectPath(addr))
	return obj.Call(deviceIface+".ConnectProfile", 0, uuid).Err
}

// disconnectProfile tears one profile down on the device.
func (b *Bus) disconnectProfile(addr, uuid string) error {
	obj := b.conn.Object(busName, b.deviceObjectPath(addr))
	return obj.Call(deviceIface+".DisconnectProfile", 0, uuid).Err
}

// managedDevices enumerates the Device1 objects BlueZ currently manages and
// refreshes the descriptor cache.
func (b *Bus) managedDevices() ([]*accessory.Descriptor, error) {
	obj := b.conn.Object(busName, "/")
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call(objManIface+".GetManagedObjects", 0).Store(&managed); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	var out []*accessory.Descriptor
	for path, ifaces := range managed {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		desc := b.descriptorFromProps(path, props)
		if desc == nil {
			continue
		}
		out = append(out, desc)
	}
	return out, nil
}

// descriptorFromProps builds (and caches) a descriptor from Device1
// properties. BlueZ does not expose pair/group membership, so those fields
// stay empty here; a richer radio stack can pre-seed the cache via Seed.
func (b *Bus) descriptorFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) *accessory.Descriptor {
	addr := b.addressFromPath(path)
	if addr == "" {
		if v, ok := props["Address"]; ok {
			addr, _ = v.Value().(string)
		}
	}
	if addr == "" {
		return nil
	}
	name := ""
	if v, ok := props["Alias"]; ok {
		name, _ = v.Value().(string)
	} else if v, ok := props["Name"]; ok {
		name, _ = v.Value().(string)
	}
	var class uint32
	if v, ok := props["Class"]; ok {
		class, _ = v.Value().(uint32)
	}
	desc := accessory.New(addr, name, class)
	b.devices.Set(addr, desc)
	return desc
}

// Seed places a descriptor into the cache, overriding what BlueZ reports.
// Used for accessories whose pair/group identity is known out of band.
func (b *Bus) Seed(desc *accessory.Descriptor) {
	if desc == nil {
		return
	}
	b.devices.Set(desc.Address, desc)
}

// lookup returns the cached descriptor for an address, or a bare descriptor
// when the device was never enumerated.
func (b *Bus) lookup(addr string) *accessory.Descriptor {
	if desc, ok := b.devices.Get(addr); ok {
		return desc
	}
	return accessory.New(addr, "", 0)
}
