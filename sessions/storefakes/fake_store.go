package storefakes

import (
	"sync"

	"github.com/bundlefront/sessionguard/sessions"
)

var _ sessions.Store = (*FakeStore)(nil)

// FakeStore is an in-memory sessions.Store that records its calls, for
// exercising the guard without real storage or cookies. OnBroadcast, when
// set, is invoked on every BroadcastChange — wire it to a bus's Publish to
// model the production store.
type FakeStore struct {
	OnBroadcast func()

	session        *sessions.Session
	clearCount     int
	broadcastCount int
	lock           sync.Mutex
}

func NewFakeStore(session *sessions.Session) *FakeStore {
	return &FakeStore{session: session}
}

func (f *FakeStore) Load() *sessions.Session {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.session
}

func (f *FakeStore) Save(session *sessions.Session) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.session = session
}

func (f *FakeStore) Clear() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.session = nil
	f.clearCount++
}

func (f *FakeStore) BroadcastChange() {
	f.lock.Lock()
	f.broadcastCount++
	onBroadcast := f.OnBroadcast
	f.lock.Unlock()

	if onBroadcast != nil {
		onBroadcast()
	}
}

// ClearCalls returns how many times Clear has run.
func (f *FakeStore) ClearCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.clearCount
}

// BroadcastCalls returns how many times BroadcastChange has run.
func (f *FakeStore) BroadcastCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.broadcastCount
}
