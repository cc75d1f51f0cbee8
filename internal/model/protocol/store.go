package protocol

// Store exposes protocol retrieval to the conversation service and HTTP handlers.
type Store interface {
	List() []Protocol
	FindByTag(tag string) (Protocol, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Protocol
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied protocols.
func NewMemoryStore(items []Protocol) *MemoryStore {
	out := make([]Protocol, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return &MemoryStore{items: out}
}

// List returns a deep copy of the protocol catalogue.
func (s *MemoryStore) List() []Protocol {
	out := make([]Protocol, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out
}

// FindByTag looks up a protocol by pattern tag.
func (s *MemoryStore) FindByTag(tag string) (Protocol, bool) {
	for _, item := range s.items {
		if item.Tag == tag {
			return item.Clone(), true
		}
	}
	return Protocol{}, false
}

// Resolve returns the protocol for tag, falling back to the default protocol.
func Resolve(store Store, tag string) Protocol {
	if tag != "" {
		if p, ok := store.FindByTag(tag); ok {
			return p
		}
	}
	if p, ok := store.FindByTag(DefaultTag); ok {
		return p
	}
	return Protocol{Tag: DefaultTag, Name: "Baseline override", Steps: withBase()}
}
