package activechats

import (
	"slices"
	"time"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

const (
	MaxActiveChatCount          = 3
	MaxContinueListeningRecency = 5 * time.Minute
)

// normalize enforces the invariants of ActiveChats using the already fetched
// rules, which have the same order as candidates. recencyOf is used to rank
// the entries if some have to be evicted.
func normalize(candidates ActiveChats, rules []chat.Rules, maxCount int, recencyOf func(ActiveChat) time.Time) ActiveChats {
	winner := chat.None
	var winnerRecency time.Time
	for i, v := range candidates {
		if !v.IsRecording || !rules[i].CanRead || !rules[i].CanWrite {
			continue
		}
		if winner.IsNone() || v.Recency.After(winnerRecency) || (v.Recency.Equal(winnerRecency) && v.ChatId < winner) {
			winner, winnerRecency = v.ChatId, v.Recency
		}
	}

	result := make(ActiveChats, 0, len(candidates))
	for i, v := range candidates {
		if v.ChatId != winner {
			v.IsRecording = false
		}
		if !v.IsActive() || !rules[i].CanRead {
			continue
		}
		result = append(result, v)
	}

	for len(result) > maxCount {
		victim := -1
		var victimRecency time.Time
		for i, v := range result {
			if v.ChatId == winner {
				continue
			}
			r := recencyOf(v)
			if victim < 0 || !r.After(victimRecency) {
				victim, victimRecency = i, r
			}
		}
		result = slices.Delete(result, victim, victim+1)
	}

	return result
}

// sanitizeRestored turns off recording and listening which is too old to
// continue after a restart.
func sanitizeRestored(in ActiveChats, now time.Time) ActiveChats {
	return in.Map(func(v ActiveChat) ActiveChat {
		v.IsRecording = false
		if v.IsListening && now.Sub(v.EffectiveRecency()) > MaxContinueListeningRecency {
			v.IsListening = false
		}
		return v
	})
}
