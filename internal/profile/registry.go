package profile

import (
	"github.com/sirupsen/logrus"
)

// Registry holds the currently bound proxy handle per profile. It is owned
// by the broker and only touched inside the broker's serialization domain,
// so it carries no locking of its own.
type Registry struct {
	provider Provider
	logger   *logrus.Logger

	handles map[ID]Handle
}

// NewRegistry creates an empty registry backed by the given provider.
func NewRegistry(provider Provider, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		provider: provider,
		logger:   logger,
		handles:  make(map[ID]Handle),
	}
}

// SetConnected stores the handle delivered by a profile-connected event.
func (r *Registry) SetConnected(id ID, handle Handle) {
	r.logger.WithField("profile", id.String()).Info("Profile service connected")
	r.handles[id] = handle
}

// SetDisconnected drops the handle for one profile. Other profiles are
// unaffected.
func (r *Registry) SetDisconnected(id ID) {
	r.logger.WithField("profile", id.String()).Info("Profile service disconnected")
	delete(r.handles, id)
}

// Has reports whether a handle for the profile is currently bound.
func (r *Registry) Has(id ID) bool {
	_, ok := r.handles[id]
	return ok
}

// Headset returns the bound headset proxy, or nil when the headset service
// is not available. All command issuance is blocked while this is nil.
func (r *Registry) Headset() HeadsetProxy {
	h, ok := r.handles[Headset]
	if !ok {
		return nil
	}
	proxy, ok := h.(HeadsetProxy)
	if !ok {
		r.logger.WithField("profile", Headset.String()).
			Error("Bound headset handle does not implement HeadsetProxy")
		return nil
	}
	return proxy
}

// Acquire asks the provider to bind the profile service. The result handle,
// if any, arrives later as a profile-connected event.
func (r *Registry) Acquire(id ID) bool {
	if r.provider == nil {
		return false
	}
	ok := r.provider.AcquireProxy(id)
	r.logger.WithFields(logrus.Fields{
		"profile":  id.String(),
		"accepted": ok,
	}).Debug("Requested profile proxy")
	return ok
}
