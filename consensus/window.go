package consensus

import (
	"sync"
	"time"

	"graphbft/types"
)

// groupBuffer groups block graphs by key. A group closes once its key has
// been idle for idleTimeout. While open, its items are flushed every
// flushInterval or as soon as batchSize items are pending.
type groupBuffer struct {
	idleTimeout   time.Duration
	flushInterval time.Duration
	batchSize     int
	flush         func(key string, items []*types.BlockGraph)

	mtx     sync.Mutex
	groups  map[string]*group
	started bool
	stopped bool

	quit chan struct{}
	done chan struct{}
}

type group struct {
	items []*types.BlockGraph
	idle  *time.Timer
}

func newGroupBuffer(
	idleTimeout, flushInterval time.Duration,
	batchSize int,
	flush func(key string, items []*types.BlockGraph),
) *groupBuffer {
	return &groupBuffer{
		idleTimeout:   idleTimeout,
		flushInterval: flushInterval,
		batchSize:     batchSize,
		flush:         flush,
		groups:        make(map[string]*group),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (b *groupBuffer) Start() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.started || b.stopped {
		return
	}
	b.started = true
	go b.flushRoutine()
}

// Stop cancels every timer. Pending items are dropped.
func (b *groupBuffer) Stop() {
	b.mtx.Lock()
	if b.stopped {
		b.mtx.Unlock()
		return
	}
	b.stopped = true
	for key, g := range b.groups {
		g.idle.Stop()
		delete(b.groups, key)
	}
	started := b.started
	b.mtx.Unlock()

	close(b.quit)
	if started {
		<-b.done
	}
}

// Add appends item to the group of key, opening it when needed.
func (b *groupBuffer) Add(key string, item *types.BlockGraph) {
	b.mtx.Lock()
	if b.stopped {
		b.mtx.Unlock()
		return
	}
	g, ok := b.groups[key]
	if ok {
		g.idle.Reset(b.idleTimeout)
	} else {
		g = &group{}
		g.idle = time.AfterFunc(b.idleTimeout, func() { b.closeGroup(key, g) })
		b.groups[key] = g
	}
	g.items = append(g.items, item)

	var batch []*types.BlockGraph
	if len(g.items) >= b.batchSize {
		batch, g.items = g.items, nil
	}
	b.mtx.Unlock()

	if batch != nil {
		b.flush(key, batch)
	}
}

// Len returns the number of open groups.
func (b *groupBuffer) Len() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.groups)
}

func (b *groupBuffer) closeGroup(key string, g *group) {
	b.mtx.Lock()
	// a newer group took the key, or the buffer stopped
	if b.groups[key] != g {
		b.mtx.Unlock()
		return
	}
	delete(b.groups, key)
	batch := g.items
	g.items = nil
	b.mtx.Unlock()

	if len(batch) > 0 {
		b.flush(key, batch)
	}
}

func (b *groupBuffer) flushRoutine() {
	defer close(b.done)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.quit:
			return
		case <-ticker.C:
			b.flushAll()
		}
	}
}

func (b *groupBuffer) flushAll() {
	batches := make(map[string][]*types.BlockGraph)
	b.mtx.Lock()
	for key, g := range b.groups {
		if len(g.items) > 0 {
			batches[key] = g.items
			g.items = nil
		}
	}
	b.mtx.Unlock()

	for key, batch := range batches {
		b.flush(key, batch)
	}
}

// debouncer calls fn for a key once delay passed without another Trigger of
// that key.
type debouncer struct {
	delay time.Duration
	fn    func(key string)

	mtx     sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration, fn func(key string)) *debouncer {
	return &debouncer{
		delay:  delay,
		fn:     fn,
		timers: make(map[string]*time.Timer),
	}
}

func (d *debouncer) Trigger(key string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mtx.Lock()
		if d.timers[key] != t {
			d.mtx.Unlock()
			return
		}
		delete(d.timers, key)
		d.mtx.Unlock()
		d.fn(key)
	})
	d.timers[key] = t
}

// Pending returns the number of armed keys.
func (d *debouncer) Pending() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return len(d.timers)
}

func (d *debouncer) Stop() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
