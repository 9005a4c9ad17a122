package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
	"github.com/blaubaer/chat-audio/pkg/common"
)

const DefaultKeepAlive = time.Minute

// Activities hands out leases on the Chat activity of chats. A Chat is
// watched as long as at least one lease is held and KeepAlive afterwards.
// Unused chats are freed by Collect.
type Activities struct {
	Repository chat.Repository
	Clocks     clock.Clocks
	KeepAlive  time.Duration

	mutex sync.Mutex
	arena []slot
	index map[chat.Id]int
	free  []int
}

type slot struct {
	chat       *Chat
	refs       int
	releasedAt time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewActivities(repository chat.Repository, clocks clock.Clocks) *Activities {
	return &Activities{
		Repository: repository,
		Clocks:     clocks.OrDefault(),
		KeepAlive:  DefaultKeepAlive,
	}
}

// Lease keeps the activity of a chat being watched until it is released.
type Lease struct {
	owner    *Activities
	slot     int
	chat     *Chat
	released atomic.Bool
}

func (this *Lease) Chat() *Chat {
	return this.chat
}

// Release returns the lease. Calling it more than once has no effect.
func (this *Lease) Release() {
	if this.released.CompareAndSwap(false, true) {
		this.owner.release(this.slot, this.chat)
	}
}

// Acquire leases the activity of the given chat and starts watching it if
// nobody else does.
func (this *Activities) Acquire(chatId chat.Id) *Lease {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.index == nil {
		this.index = map[chat.Id]int{}
	}
	i, ok := this.index[chatId]
	if !ok {
		i = this.allocate(chatId)
		this.index[chatId] = i
	}
	s := &this.arena[i]
	s.refs++
	return &Lease{owner: this, slot: i, chat: s.chat}
}

func (this *Activities) allocate(chatId chat.Id) int {
	c := newChat(chatId, this.Repository, this.Clocks)
	ctx, cancel := context.WithCancel(context.Background())
	s := slot{chat: c, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		if err := c.run(ctx); err != nil && !common.IsCancellation(err) {
			log.With("chatId", chatId).
				WithError(err).
				Warn("Cannot watch activity of chat.")
		}
	}()

	if n := len(this.free); n > 0 {
		i := this.free[n-1]
		this.free = this.free[:n-1]
		this.arena[i] = s
		return i
	}
	this.arena = append(this.arena, s)
	return len(this.arena) - 1
}

func (this *Activities) release(i int, c *Chat) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	s := &this.arena[i]
	if s.chat != c {
		// Already freed by Close.
		return
	}
	s.refs--
	if s.refs == 0 {
		s.releasedAt = this.Clocks.Cpu.Now()
	}
}

// Collect stops watching every chat which was not leased for KeepAlive and
// returns how many were freed.
func (this *Activities) Collect() int {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	now := this.Clocks.Cpu.Now()
	freed := 0
	for chatId, i := range this.index {
		s := &this.arena[i]
		if s.refs > 0 || now.Sub(s.releasedAt) < this.KeepAlive {
			continue
		}
		s.cancel()
		<-s.done
		this.arena[i] = slot{}
		delete(this.index, chatId)
		this.free = append(this.free, i)
		freed++
	}
	return freed
}

// Len returns how many chats are currently watched.
func (this *Activities) Len() int {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return len(this.index)
}

// Run collects every interval until ctx is done. On return every chat is
// freed.
func (this *Activities) Run(ctx context.Context, interval time.Duration) error {
	defer this.Close()
	for {
		if err := clock.Sleep(ctx, this.Clocks.Cpu, interval); err != nil {
			return err
		}
		if freed := this.Collect(); freed > 0 {
			log.With("freed", freed).
				Debug("Unused chat activities freed.")
		}
	}
}

// Close stops watching all chats. Existing leases keep their last state.
func (this *Activities) Close() {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	for chatId, i := range this.index {
		s := &this.arena[i]
		s.cancel()
		<-s.done
		this.arena[i] = slot{}
		delete(this.index, chatId)
		this.free = append(this.free, i)
	}
}
