package activechats

import (
	"context"

	"github.com/blaubaer/chat-audio/pkg/chat"
)

// ChatState is the audio state of a single chat.
type ChatState struct {
	ChatId      chat.Id `json:"chatId"`
	IsListening bool    `json:"isListening"`
	IsRecording bool    `json:"isRecording"`
}

func (this *Manager) ChatState(chatId chat.Id) ChatState {
	v, _ := this.Get().Get(chatId)
	return ChatState{chatId, v.IsListening, v.IsRecording}
}

func (this *Manager) ListeningChatIds() chat.Ids {
	return this.Get().ListeningChatIds()
}

func (this *Manager) RecordingChatId() chat.Id {
	return this.Get().RecordingChatId()
}

// SetListeningState turns listening of the given chat on or off. A chat
// which starts to be listened to is moved to the end.
func (this *Manager) SetListeningState(ctx context.Context, chatId chat.Id, mustListen bool) error {
	if chatId.IsNone() {
		return nil
	}
	now := this.now()
	return this.UpdateActiveChats(ctx, func(_ context.Context, current ActiveChats) ActiveChats {
		existing, ok := current.Get(chatId)
		if ok && existing.IsListening == mustListen {
			return current
		}
		if !ok && !mustListen {
			return current
		}
		existing.IsListening = mustListen
		if mustListen {
			existing.ListeningRecency = now
			if !ok {
				existing.Recency = now
			}
		}
		return current.WithMovedToEnd(existing)
	})
}

// ClearListeningState turns listening off for every chat.
func (this *Manager) ClearListeningState(ctx context.Context) error {
	return this.UpdateActiveChats(ctx, func(_ context.Context, current ActiveChats) ActiveChats {
		return current.Map(func(v ActiveChat) ActiveChat {
			v.IsListening = false
			return v
		})
	})
}

// SetRecordingChatId makes the given chat the only recording one. Unless
// isPushToTalk is set it is listened to as well. The previously recording
// chat stops to record but keeps listening. chat.None stops recording.
func (this *Manager) SetRecordingChatId(ctx context.Context, chatId chat.Id, isPushToTalk bool) error {
	now := this.now()
	return this.UpdateActiveChats(ctx, func(_ context.Context, current ActiveChats) ActiveChats {
		result := current.Map(func(v ActiveChat) ActiveChat {
			if v.IsRecording && v.ChatId != chatId {
				v.IsRecording = false
				v.Recency = now
			}
			return v
		})
		if chatId.IsNone() {
			return result
		}
		target, ok := result.Get(chatId)
		if ok && target.IsRecording && (isPushToTalk || target.IsListening) {
			return result
		}
		target.IsRecording = true
		target.Recency = now
		if !isPushToTalk && !target.IsListening {
			target.IsListening = true
			target.ListeningRecency = now
		}
		return result.With(target)
	})
}
