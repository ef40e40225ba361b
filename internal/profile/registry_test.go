package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/scolink/internal/accessory"
)

type stubHandle struct {
	id ID
}

func (h *stubHandle) Profile() ID { return h.id }

type stubHeadset struct {
	stubHandle
}

func (h *stubHeadset) Connect(mode int, dev *accessory.Descriptor) bool    { return true }
func (h *stubHeadset) Disconnect(mode int, dev *accessory.Descriptor) bool { return true }
func (h *stubHeadset) AudioStatus(dev *accessory.Descriptor) AudioStatus {
	return AudioDisconnected
}
func (h *stubHeadset) ActiveDevice() *accessory.Descriptor { return nil }

type stubProvider struct {
	accept   bool
	requests []ID
}

func (p *stubProvider) AcquireProxy(id ID) bool {
	p.requests = append(p.requests, id)
	return p.accept
}

func TestRegistryConnectDisconnect(t *testing.T) {
	r := NewRegistry(nil, nil)
	handle := &stubHandle{id: A2DP}

	assert.False(t, r.Has(A2DP))
	r.SetConnected(A2DP, handle)
	assert.True(t, r.Has(A2DP))

	r.SetDisconnected(A2DP)
	assert.False(t, r.Has(A2DP))
}

func TestRegistryDisconnectLeavesOthers(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.SetConnected(Headset, &stubHeadset{stubHandle{id: Headset}})
	r.SetConnected(A2DP, &stubHandle{id: A2DP})

	r.SetDisconnected(A2DP)

	assert.True(t, r.Has(Headset))
	assert.NotNil(t, r.Headset())
}

func TestRegistryHeadsetRequiresProxyInterface(t *testing.T) {
	r := NewRegistry(nil, nil)

	assert.Nil(t, r.Headset(), "nothing bound")

	r.SetConnected(Headset, &stubHandle{id: Headset})
	assert.Nil(t, r.Headset(), "a handle without commands is unusable")

	r.SetConnected(Headset, &stubHeadset{stubHandle{id: Headset}})
	assert.NotNil(t, r.Headset())
}

func TestRegistryAcquire(t *testing.T) {
	p := &stubProvider{accept: true}
	r := NewRegistry(p, nil)

	assert.True(t, r.Acquire(Headset))
	assert.Equal(t, []ID{Headset}, p.requests)

	p.accept = false
	assert.False(t, r.Acquire(LEAudio))
}

func TestRegistryAcquireWithoutProvider(t *testing.T) {
	r := NewRegistry(nil, nil)

	assert.False(t, r.Acquire(Headset))
}
