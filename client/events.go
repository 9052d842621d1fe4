package client

// Handler receives the payload of one inbound event. Handlers run on the
// manager's reader goroutine; treat the payload as a cue to re-fetch
// authoritative state instead of doing heavy work inline.
type Handler func(payload map[string]any)

// Subscribe registers a handler for a named event and returns its
// unsubscribe function. Independent features subscribe to the same event
// without coupling to each other or to connection lifecycle.
func (m *Manager) Subscribe(event string, fn Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	if m.subs[event] == nil {
		m.subs[event] = make(map[int]Handler)
	}
	m.subs[event][id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[event], id)
		if len(m.subs[event]) == 0 {
			delete(m.subs, event)
		}
	}
}

// dispatch fans one frame out to the event's subscribers. The handler list
// is snapshotted under the mutex, then invoked outside it so a handler can
// subscribe or unsubscribe without deadlocking.
func (m *Manager) dispatch(event string, payload map[string]any) {
	m.mu.Lock()
	handlers := make([]Handler, 0, len(m.subs[event]))
	for _, fn := range m.subs[event] {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
