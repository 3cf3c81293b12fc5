package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

func sampleLog() []chat.Message {
	return []chat.Message{
		{ID: "1", Text: "olá", Time: "10:00", Origin: chat.OriginUser, Kind: chat.KindText},
		{ID: "2", Text: "Oi!", Time: "10:00", Origin: chat.OriginAgent, Kind: chat.KindText,
			Actions: []chat.Action{{Label: "Menu", Action: "menu"}}},
		{ID: "3", Time: "10:01", Origin: chat.OriginUser, Kind: chat.KindImage,
			ImagePayload: "data:image/png;base64,iVBORw0KGgo="},
	}
}

func TestPersistenceLogRoundTrip(t *testing.T) {
	p := NewPersistence(NewMemoryKV(), "site")
	log := sampleLog()

	require.NoError(t, p.SaveLog(log))
	assert.Equal(t, log, p.LoadLog())
}

func TestPersistenceResponsesRoundTrip(t *testing.T) {
	p := NewPersistence(NewMemoryKV(), "site")
	mapping := chat.ResponseMapping{
		"oi":      chat.PlainResponse("Olá"),
		"horario": chat.StructuredResponse("9h-18h", chat.Action{Label: "Atendente", Action: "atendente"}),
	}

	require.NoError(t, p.SaveResponses(mapping))
	assert.Equal(t, mapping, p.LoadResponses())
}

func TestPersistenceAbsentDataIsEmpty(t *testing.T) {
	p := NewPersistence(NewMemoryKV(), "site")
	assert.Empty(t, p.LoadLog())
	assert.NotNil(t, p.LoadLog())
	assert.Empty(t, p.LoadResponses())
}

func TestPersistenceCorruptDataIsEmpty(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set("site/"+LogKey, []byte("{not json")))
	require.NoError(t, kv.Set("site/"+ResponsesKey, []byte("[1,2]")))
	p := NewPersistence(kv, "site")

	assert.Empty(t, p.LoadLog())
	assert.Empty(t, p.LoadResponses())
}

type failingKV struct{}

func (failingKV) Get(string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (failingKV) Set(string, []byte) error   { return errors.New("disk on fire") }
func (failingKV) Delete(string) error        { return nil }
func (failingKV) Close() error               { return nil }

func TestPersistenceReadErrorIsEmpty(t *testing.T) {
	p := NewPersistence(failingKV{}, "site")
	assert.Empty(t, p.LoadLog())
	assert.Error(t, p.SaveLog(sampleLog()))
}

func TestPersistenceScopesAreIndependent(t *testing.T) {
	kv := NewMemoryKV()
	a := NewPersistence(kv, "a")
	b := NewPersistence(kv, "b")

	require.NoError(t, a.SaveLog(sampleLog()))
	assert.Empty(t, b.LoadLog())
}

func TestWriteBehindKeepsNewestSnapshot(t *testing.T) {
	p := NewPersistence(NewMemoryKV(), "site")
	w := NewWriteBehind(p)
	defer w.Close()

	full := sampleLog()
	w.QueueLog(2, full)
	w.QueueLog(1, full[:1])
	w.Flush()

	assert.Equal(t, full, p.LoadLog())
}

func TestWriteBehindCloseDrains(t *testing.T) {
	p := NewPersistence(NewMemoryKV(), "site")
	w := NewWriteBehind(p)

	w.QueueResponses(chat.ResponseMapping{"oi": chat.PlainResponse("olá")})
	w.Close()
	w.Close()
	w.Flush()

	assert.Equal(t, "olá", p.LoadResponses()["oi"].Text)
}

func TestWriteBehindWritesAfterClose(t *testing.T) {
	p := NewPersistence(NewMemoryKV(), "site")
	w := NewWriteBehind(p)
	w.QueueLog(1, sampleLog()[:1])
	w.Close()

	w.QueueLog(2, sampleLog())
	assert.Equal(t, sampleLog(), p.LoadLog())

	w.QueueLog(1, nil)
	assert.Equal(t, sampleLog(), p.LoadLog(), "stale snapshot ignored")
}

func TestPebbleRoundTrip(t *testing.T) {
	kv, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer kv.Close()

	_, err = kv.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	p := NewPersistence(kv, "site")
	require.NoError(t, p.SaveLog(sampleLog()))
	assert.Equal(t, sampleLog(), p.LoadLog())

	require.NoError(t, kv.Delete("site/"+LogKey))
	assert.Empty(t, p.LoadLog())
}
