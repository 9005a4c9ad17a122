package playback

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/chat-audio/pkg/chat"
	"github.com/blaubaer/chat-audio/pkg/clock"
)

func runPlayers(ctx context.Context, instance *Players) <-chan error {
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()
	return done
}

func TestPlayers_realtime(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, _ := givenRepository(t,
		finalized(now.Add(-5*time.Second), now.Add(time.Second)),
	)
	clocks, _ := clock.NewFakeClocks(now)
	engine := &fakeEngine{}
	instance := NewPlayers(repo, engine, fakeResolver{}, clocks, NewOptions())

	runCtx, runCancel := context.WithCancel(ctx)
	done := runPlayers(runCtx, instance)

	require.NoError(t, instance.StartRealtimePlayback(ctx, chat.Ids{"a"}))
	require.Eventually(t, func() bool { return len(engine.Tracks()) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, instance.StopPlayback(ctx))
	require.Eventually(t, func() bool { return len(engine.Events()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"play:a#0", "stop:a"}, engine.Events())

	runCancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPlayers_historicalCompletionResetsState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, _ := givenRepository(t,
		finalized(epoch, epoch.Add(time.Second)),
	)
	clocks, _ := clock.NewFakeClocks(now)
	engine := &fakeEngine{}
	instance := NewPlayers(repo, engine, fakeResolver{}, clocks, NewOptions())

	runCtx, runCancel := context.WithCancel(ctx)
	done := runPlayers(runCtx, instance)

	require.NoError(t, instance.StartHistoricalPlayback(ctx, "a", epoch))
	_, err := instance.State().When(ctx, func(v State) bool { return v.IsNone() })
	require.NoError(t, err)
	assert.Len(t, engine.Tracks(), 1)

	runCancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPlayers_failureResetsState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	broken := finalized(now.Add(-5*time.Second), now.Add(time.Second))
	broken.ContentId = "broken"
	repo, _ := givenRepository(t, broken)
	clocks, _ := clock.NewFakeClocks(now)
	instance := NewPlayers(repo, &fakeEngine{}, fakeResolver{}, clocks, NewOptions())

	done := runPlayers(ctx, instance)
	require.NoError(t, instance.StartRealtimePlayback(ctx, chat.Ids{"a"}))

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "broken content")
	case <-ctx.Done():
		t.Fatal("players did not fail")
	}
	assert.True(t, instance.State().Get().IsNone())
}

func TestPlayers_realtimeOfUnreadableChatIsNotRestarted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, _ := givenRepository(t,
		finalized(now.Add(-5*time.Second), now.Add(time.Second)),
	)
	repo.PutChat(chat.Chat{Id: "a", Title: "a"}, chat.Rules{})
	clocks, _ := clock.NewFakeClocks(now)
	engine := &fakeEngine{}
	instance := NewPlayers(repo, engine, fakeResolver{}, clocks, NewOptions())
	var mutex sync.Mutex
	var endedChats chat.Ids
	instance.OnRealtimeEnded = func(_ context.Context, chatId chat.Id) {
		mutex.Lock()
		defer mutex.Unlock()
		endedChats = append(endedChats, chatId)
	}
	ended := func() chat.Ids {
		mutex.Lock()
		defer mutex.Unlock()
		return slices.Clone(endedChats)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	done := runPlayers(runCtx, instance)

	require.NoError(t, instance.StartRealtimePlayback(ctx, chat.Ids{"a"}))
	require.Eventually(t, func() bool { return len(ended()) > 0 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, chat.Ids{"a"}, ended())
	assert.Empty(t, engine.Events())

	repo.PutChat(chat.Chat{Id: "a", Title: "a"}, chat.Rules{CanRead: true, CanWrite: true})
	require.NoError(t, instance.StopPlayback(ctx))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, instance.StartRealtimePlayback(ctx, chat.Ids{"a"}))
	require.Eventually(t, func() bool { return len(engine.Tracks()) == 1 }, 5*time.Second, 10*time.Millisecond)

	runCancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPlayers_StartHistoricalPlayback_requiresChat(t *testing.T) {
	instance := NewPlayers(nil, &fakeEngine{}, fakeResolver{}, clock.NewClocks(), NewOptions())
	assert.Error(t, instance.StartHistoricalPlayback(context.Background(), chat.None, epoch))
}
