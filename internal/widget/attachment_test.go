package widget

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestAttachFileAppendsImageDataURL(t *testing.T) {
	tr := &fakeTransport{}
	w := newWidget(t, Dependencies{Transport: tr}, Options{Endpoint: "ws://relay.test/ws"})

	require.NoError(t, w.AttachFile("foto.png", pngHeader))

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.OriginUser, msgs[0].Origin)
	assert.Equal(t, chat.KindImage, msgs[0].Kind)
	assert.Empty(t, msgs[0].Text)
	assert.True(t, strings.HasPrefix(msgs[0].ImagePayload, "data:image/png;base64,"))
	assert.Equal(t, []string{msgs[0].ImagePayload}, tr.images)
}

func TestAttachFileRejectsNonImages(t *testing.T) {
	w := newWidget(t, Dependencies{}, Options{})

	cases := map[string][]byte{
		"empty":   nil,
		"text":    []byte("apenas texto"),
		"pdf":     []byte("%PDF-1.7\n"),
		"too big": append(append([]byte(nil), pngHeader...), bytes.Repeat([]byte{0}, MaxAttachmentBytes)...),
	}
	for name, data := range cases {
		err := w.AttachFile(name, data)
		assert.ErrorIs(t, err, ErrUnsupportedAttachment, name)
	}
	assert.Empty(t, w.Messages())
}

func TestSendImageValidatesDataURL(t *testing.T) {
	w := newWidget(t, Dependencies{}, Options{})

	for _, bad := range []string{"", "data:text/plain;base64,AAAA", "data:image/png,raw", "data:image/png;base64,", "https://x/y.png"} {
		assert.ErrorIs(t, w.SendImage(bad), ErrUnsupportedAttachment, bad)
	}
	assert.Empty(t, w.Messages())
}
