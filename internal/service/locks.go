package service

import "sync"

// participantLocks serializes submissions of one participant. Entries live
// only while someone holds or waits for them.
type participantLocks struct {
	mu    sync.Mutex
	locks map[int64]*participantLock
}

type participantLock struct {
	sync.Mutex
	refs int
}

func newParticipantLocks() *participantLocks {
	return &participantLocks{locks: make(map[int64]*participantLock)}
}

func (p *participantLocks) lock(id int64) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &participantLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}

func (p *participantLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
