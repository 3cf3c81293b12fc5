package chat_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-widget/internal/service/chat"
)

func fixedClock() *chatservice.Clock {
	return chatservice.NewClock("pt-BR").WithNow(func() time.Time {
		return time.Date(2024, 5, 1, 14, 7, 0, 0, time.UTC)
	})
}

func newStore() *chatservice.Store {
	return chatservice.NewStore(chatservice.WithClock(fixedClock()))
}

func TestStoreAppendKeepsCallOrder(t *testing.T) {
	store := newStore()

	var want []string
	for i := 0; i < 20; i++ {
		origin := chat.OriginUser
		if i%3 == 0 {
			origin = chat.OriginAgent
		}
		text := fmt.Sprintf("msg-%d", i)
		want = append(want, text)
		store.Append(chat.TextDraft(origin, text))
	}

	got := store.Messages()
	require.Len(t, got, len(want))
	ids := map[string]bool{}
	for i, m := range got {
		assert.Equal(t, want[i], m.Text)
		assert.False(t, ids[m.ID], "duplicate id %s", m.ID)
		ids[m.ID] = true
	}
}

func TestStoreAppendStampsTimeLabel(t *testing.T) {
	store := newStore()
	msg := store.Append(chat.TextDraft(chat.OriginUser, "oi"))

	assert.Equal(t, "14:07", msg.Time)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, chat.KindText, msg.Kind)
}

func TestStoreImageAppendHasEmptyText(t *testing.T) {
	store := newStore()
	d := chat.ImageDraft(chat.OriginUser, "data:image/png;base64,AAAA")
	d.Text = "ignored"

	msg := store.Append(d)

	assert.Equal(t, "", msg.Text)
	assert.Equal(t, chat.KindImage, msg.Kind)
	assert.Equal(t, "data:image/png;base64,AAAA", msg.ImagePayload)
}

func TestStoreBadgeCountsAgentMessagesWhileHidden(t *testing.T) {
	store := newStore()

	store.Append(chat.TextDraft(chat.OriginAgent, "a"))
	store.Append(chat.TextDraft(chat.OriginUser, "u"))
	store.Append(chat.TextDraft(chat.OriginAgent, "b"))
	assert.Equal(t, 2, store.Unread())

	store.Show(chat.TextDraft(chat.OriginAgent, "welcome"))
	assert.Equal(t, 0, store.Unread())

	store.Append(chat.TextDraft(chat.OriginAgent, "while visible"))
	assert.Equal(t, 0, store.Unread())

	store.Hide()
	store.Append(chat.TextDraft(chat.OriginAgent, "c"))
	assert.Equal(t, 1, store.Unread())

	store.Show(chat.TextDraft(chat.OriginAgent, "welcome"))
	assert.Equal(t, 0, store.Unread())
}

func TestStoreWelcomeIsIdempotent(t *testing.T) {
	store := newStore()

	assert.True(t, store.Show(chat.TextDraft(chat.OriginAgent, "Olá!")))
	require.Equal(t, 1, store.Len())

	store.Hide()
	assert.False(t, store.Show(chat.TextDraft(chat.OriginAgent, "Olá!")))
	assert.Equal(t, 1, store.Len())

	msgs := store.Messages()
	assert.Equal(t, "Olá!", msgs[0].Text)
	assert.Equal(t, chat.OriginAgent, msgs[0].Origin)
}

func TestStoreWelcomeFiresAgainAfterClear(t *testing.T) {
	store := newStore()
	store.Show(chat.TextDraft(chat.OriginAgent, "hi"))
	store.Hide()
	store.Clear()

	assert.True(t, store.Show(chat.TextDraft(chat.OriginAgent, "hi")))
	assert.Equal(t, 1, store.Len())
}

func TestStoreClearKeepsUnread(t *testing.T) {
	store := newStore()
	for i := 0; i < 5; i++ {
		store.Append(chat.TextDraft(chat.OriginAgent, "x"))
	}
	require.Equal(t, 5, store.Unread())

	store.Clear()

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 5, store.Unread())
}

func TestStoreLoadReplacesVerbatim(t *testing.T) {
	store := newStore()
	store.Append(chat.TextDraft(chat.OriginAgent, "old"))
	unread := store.Unread()

	history := []chat.Message{
		{ID: "1", Text: "a", Time: "09:00", Origin: chat.OriginUser, Kind: chat.KindText},
		{ID: "2", Text: "b", Time: "09:01", Origin: chat.OriginAgent, Kind: chat.KindText},
	}
	store.Load(history)

	assert.Equal(t, history, store.Messages())
	assert.Equal(t, unread, store.Unread())
}

func TestStoreLoadMatchesStorageRoundTrip(t *testing.T) {
	store := newStore()
	store.Load([]chat.Message{
		{ID: "1", Text: "sem tipo", Time: "09:00", Actions: []chat.Action{}},
		{ID: "2", Text: "b", Time: "09:01", Origin: chat.OriginUser, Kind: chat.KindText},
	})
	loaded := store.Messages()

	data, err := json.Marshal(loaded)
	require.NoError(t, err)
	var back []chat.Message
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, loaded, back)
	assert.Equal(t, chat.OriginAgent, loaded[0].Origin)
	assert.Equal(t, chat.KindText, loaded[0].Kind)
	assert.Nil(t, loaded[0].Actions)
}

func TestStoreListenersSeeOrderedSnapshots(t *testing.T) {
	store := newStore()
	var changes []chatservice.Change
	store.OnChange(func(c chatservice.Change) { changes = append(changes, c) })

	store.Append(chat.TextDraft(chat.OriginUser, "a"))
	store.Clear()
	store.Load([]chat.Message{{ID: "x", Text: "y", Origin: chat.OriginAgent, Kind: chat.KindText}})

	require.Len(t, changes, 3)
	assert.Equal(t, chatservice.ChangeAppended, changes[0].Kind)
	require.NotNil(t, changes[0].Message)
	assert.Equal(t, "a", changes[0].Message.Text)
	assert.Equal(t, chatservice.ChangeCleared, changes[1].Kind)
	assert.Empty(t, changes[1].Snapshot)
	assert.Equal(t, chatservice.ChangeLoaded, changes[2].Kind)
	assert.Len(t, changes[2].Snapshot, 1)
	assert.Less(t, changes[0].Seq, changes[1].Seq)
	assert.Less(t, changes[1].Seq, changes[2].Seq)
}

func TestStoreSetUnreadClampsNegative(t *testing.T) {
	store := newStore()
	store.SetUnread(-3)
	assert.Equal(t, 0, store.Unread())
	store.SetUnread(7)
	assert.Equal(t, 7, store.Unread())
}
