package bluez

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/internal/profile"
	"github.com/srg/scolink/sco"
)

// EventSink is where the adapter delivers radio-stack notifications. The
// sco.Broker satisfies it; every method only enqueues.
type EventSink interface {
	OnAudioEvent(ev sco.AudioEvent)
	SetActiveDevice(dev *accessory.Descriptor)
	OnProfileConnected(id profile.ID, handle profile.Handle)
	OnProfileDisconnected(id profile.ID)
}

// Adapter translates between the SCO core and BlueZ: it implements the
// profile provider (service binding) and watches bus signals, feeding them
// into the broker's event queue.
type Adapter struct {
	bus    *Bus
	sink   EventSink
	logger *logrus.Logger

	// lastConnected is the address of the device the adapter most recently
	// promoted to routing target. Only the Watch goroutine touches it.
	lastConnected string
}

// NewAdapter wires a Bus to an event sink.
func NewAdapter(bus *Bus, sink EventSink, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{bus: bus, sink: sink, logger: logger}
}

// AcquireProxy implements profile.Provider. BlueZ has no per-profile
// binding handshake, so acceptance means the bus is reachable; the handle is
// delivered asynchronously like a real service bind would be.
func (a *Adapter) AcquireProxy(id profile.ID) bool {
	var owned bool
	err := a.bus.conn.BusObject().
		Call("org.freedesktop.DBus.NameHasOwner", 0, busName).Store(&owned)
	if err != nil || !owned {
		a.logger.WithError(err).WithField("profile", id.String()).
			Warn("BlueZ unavailable, proxy acquisition rejected")
		return false
	}
	handle := a.handleFor(id)
	go a.sink.OnProfileConnected(id, handle)
	return true
}

func (a *Adapter) handleFor(id profile.ID) profile.Handle {
	if id == profile.Headset {
		return &headsetProxy{bus: a.bus, logger: a.logger}
	}
	return &serviceHandle{id: id}
}

// Watch translates BlueZ signals into broker events until ctx is done.
// It first enumerates managed devices so the descriptor cache is warm and
// already-connected accessories are adopted.
func (a *Adapter) Watch(ctx context.Context) error {
	devices, err := a.bus.managedDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		connected, err := a.bus.deviceConnected(dev.Address)
		if err != nil || !connected {
			continue
		}
		a.promote(dev)
	}

	if err := a.bus.conn.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(dbus.ObjectPath(a.bus.adapterPath())),
	); err != nil {
		return err
	}
	if err := a.bus.conn.AddMatchSignal(
		dbus.WithMatchInterface(objManIface),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		return err
	}

	sigCh := make(chan *dbus.Signal, 32)
	a.bus.conn.Signal(sigCh)
	defer a.bus.conn.RemoveSignal(sigCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-sigCh:
			if !ok {
				return nil
			}
			a.handleSignal(sig)
		}
	}
}

func (a *Adapter) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case propsSignal:
		a.handlePropertiesChanged(sig)
	case objManIface + ".InterfacesAdded":
		a.handleInterfacesAdded(sig)
	}
}

func (a *Adapter) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	if iface != deviceIface {
		return
	}
	changed, _ := sig.Body[1].(map[string]dbus.Variant)
	v, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, _ := v.Value().(bool)
	addr := a.bus.addressFromPath(sig.Path)
	if addr == "" {
		return
	}
	dev := a.bus.lookup(addr)

	a.logger.WithFields(logrus.Fields{
		"device":    dev.AnonymizedAddress(),
		"connected": connected,
	}).Debug("BlueZ device connection change")

	if connected {
		a.promote(dev)
		return
	}
	a.sink.OnAudioEvent(sco.AudioEvent{Status: profile.AudioDisconnected, Device: dev})
	if addr == a.lastConnected {
		a.lastConnected = ""
		a.sink.SetActiveDevice(nil)
	}
}

// promote makes dev the routing target and reports its audio as connected.
// Ordering matters: the routing change must be queued before the audio
// event so the machine has an active accessory when the event lands.
func (a *Adapter) promote(dev *accessory.Descriptor) {
	a.lastConnected = dev.Address
	a.sink.SetActiveDevice(dev)
	a.sink.OnAudioEvent(sco.AudioEvent{Status: profile.AudioConnected, Device: dev})
}

func (a *Adapter) handleInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, _ := sig.Body[0].(dbus.ObjectPath)
	ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
	props, ok := ifaces[deviceIface]
	if !ok {
		return
	}
	if desc := a.bus.descriptorFromProps(path, props); desc != nil {
		a.logger.WithField("device", desc.AnonymizedAddress()).Debug("BlueZ device discovered")
	}
}

// headsetProxy issues headset profile commands through BlueZ.
type headsetProxy struct {
	bus    *Bus
	logger *logrus.Logger
}

func (p *headsetProxy) Profile() profile.ID { return profile.Headset }

func (p *headsetProxy) Connect(mode int, dev *accessory.Descriptor) bool {
	if dev == nil {
		return false
	}
	err := p.bus.connectProfile(dev.Address, HFPProfileUUID)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"device": dev.AnonymizedAddress(),
			"mode":   mode,
		}).Warn("HFP connect rejected")
	}
	return err == nil
}

func (p *headsetProxy) Disconnect(mode int, dev *accessory.Descriptor) bool {
	if dev == nil {
		return false
	}
	err := p.bus.disconnectProfile(dev.Address, HFPProfileUUID)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"device": dev.AnonymizedAddress(),
			"mode":   mode,
		}).Warn("HFP disconnect rejected")
	}
	return err == nil
}

func (p *headsetProxy) AudioStatus(dev *accessory.Descriptor) profile.AudioStatus {
	if dev == nil {
		return profile.AudioDisconnected
	}
	connected, err := p.bus.deviceConnected(dev.Address)
	if err != nil || !connected {
		return profile.AudioDisconnected
	}
	return profile.AudioConnected
}

func (p *headsetProxy) ActiveDevice() *accessory.Descriptor {
	devices, err := p.bus.managedDevices()
	if err != nil {
		return nil
	}
	for _, dev := range devices {
		connected, err := p.bus.deviceConnected(dev.Address)
		if err == nil && connected {
			return dev
		}
	}
	return nil
}

// serviceHandle is the opaque bound handle for non-headset profiles.
type serviceHandle struct {
	id profile.ID
}

func (h *serviceHandle) Profile() profile.ID { return h.id }
