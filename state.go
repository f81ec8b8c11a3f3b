package ringpipe

// channelState is the tag of a Pipe's lifecycle: IdleEmpty, IdleNonEmpty,
// Reading, Writing, ReadingWriting, Terminated. Go has no closed sum types,
// so this is the conventional enum-plus-payload transcription: a tag plus
// the pipe's own backing/lease fields as the payload, switched over rather
// than subclassed.
type channelState uint8

const (
	stateIdleEmpty channelState = iota
	stateIdleNonEmpty
	stateReading
	stateWriting
	stateReadingWriting
	stateTerminated
)

func (s channelState) String() string {
	switch s {
	case stateIdleEmpty:
		return "IdleEmpty"
	case stateIdleNonEmpty:
		return "IdleNonEmpty"
	case stateReading:
		return "Reading"
	case stateWriting:
		return "Writing"
	case stateReadingWriting:
		return "ReadingWriting"
	case stateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// setupStateForWrite performs the writer-side lease transition and
// returns the backing store to write into. Callers must hold p.mu.
func (p *Pipe) setupStateForWrite() (*backingStore, error) {
	if cause, closed := p.closed.isSet(); closed {
		if cause != nil {
			return nil, cause
		}
		return nil, ErrClosedWriteChannel
	}
	if p.join.Load() != nil {
		return nil, errJoined
	}

	switch p.state {
	case stateIdleEmpty:
		backing, err := p.leaseBackingLocked()
		if err != nil {
			return nil, err
		}
		p.state = stateWriting
		return backing, nil
	case stateIdleNonEmpty:
		p.state = stateWriting
		return p.backing, nil
	case stateReading:
		p.state = stateReadingWriting
		return p.backing, nil
	case stateWriting, stateReadingWriting:
		return nil, newIllegalStateError("write already in progress")
	case stateTerminated:
		return nil, ErrClosedWriteChannel
	default:
		return nil, newIllegalStateError("unreachable channel state")
	}
}

// restoreStateAfterWrite reverses setupStateForWrite. If the channel is now
// IdleNonEmpty with nothing left buffered it resets to IdleEmpty and
// releases the backing store to the pool.
func (p *Pipe) restoreStateAfterWrite() {
	switch p.state {
	case stateWriting:
		p.state = stateIdleNonEmpty
	case stateReadingWriting:
		p.state = stateReading
	case stateTerminated:
		// a close terminated the pipe while this lease was held
		return
	default:
		panic("ringpipe: restoreStateAfterWrite called outside a write lease")
	}
	p.maybeReleaseLocked()
}

// setupStateForRead is the reader-side mirror of setupStateForWrite.
func (p *Pipe) setupStateForRead() (*backingStore, error) {
	switch p.state {
	case stateIdleEmpty:
		if cause, closed := p.closed.isSet(); closed {
			// Report the sticky cause, if any, ahead of a bare EOF even
			// though there is no buffer left to drain.
			if cause != nil {
				return nil, cause
			}
			return nil, ErrClosedReceiveChannel
		}
		return nil, errNoDataYet
	case stateIdleNonEmpty:
		p.state = stateReading
		return p.backing, nil
	case stateWriting:
		p.state = stateReadingWriting
		return p.backing, nil
	case stateReading, stateReadingWriting:
		return nil, newIllegalStateError("read already in progress")
	case stateTerminated:
		if cause, closed := p.closed.isSet(); closed && cause != nil {
			return nil, cause
		}
		return nil, ErrClosedReceiveChannel
	default:
		return nil, newIllegalStateError("unreachable channel state")
	}
}

// restoreStateAfterRead is the reader-side mirror of restoreStateAfterWrite.
func (p *Pipe) restoreStateAfterRead() {
	switch p.state {
	case stateReading:
		p.state = stateIdleNonEmpty
	case stateReadingWriting:
		p.state = stateWriting
	case stateTerminated:
		// a close terminated the pipe while this lease was held
		return
	default:
		panic("ringpipe: restoreStateAfterRead called outside a read lease")
	}
	p.maybeReleaseLocked()
}

// maybeReleaseLocked returns backing to the pool when the channel reaches
// IdleEmpty from IdleNonEmpty with empty counters, or when close() drains
// the ring.
func (p *Pipe) maybeReleaseLocked() {
	if p.state != stateIdleNonEmpty {
		return
	}
	if !p.capacity.isEmpty() || p.capacity.pendingToFlush != 0 {
		return
	}
	if cause, closed := p.closed.isSet(); closed {
		p.terminateLocked(cause)
		return
	}
	p.pool.Put(p.backing.data)
	p.backing = nil
	p.capacity.resetForRead()
	p.capacity.resetForWrite()
	p.state = stateIdleEmpty
}

// terminateLocked transitions unconditionally to Terminated and returns the
// backing store to the pool, poisoning the capacity so further try* calls
// fail. Safe to call more than once.
func (p *Pipe) terminateLocked(cause error) {
	if p.state == stateTerminated {
		return
	}
	if p.backing != nil {
		p.pool.Put(p.backing.data)
		p.backing = nil
	}
	p.capacity.forceLockForRelease()
	p.state = stateTerminated
}

func (p *Pipe) leaseBackingLocked() (*backingStore, error) {
	if p.backing != nil {
		return p.backing, nil
	}
	buf := p.pool.Get(p.dataCapacity + p.reservedSize)
	p.backing = newBackingStore(buf, p.dataCapacity, p.reservedSize)
	return p.backing, nil
}
