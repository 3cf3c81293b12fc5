package widget

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

var ErrUnsupportedAttachment = errors.New("attachment is not a supported image")

// MaxAttachmentBytes bounds the decoded size of an attached image.
const MaxAttachmentBytes = 5 << 20

// AttachFile appends and publishes an image read from a file. Content that
// is not a recognizable image is rejected and nothing is appended.
func (w *Widget) AttachFile(name string, data []byte) error {
	dataURL, err := ImageDataURL(data)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("[widget] attachment rejected")
		return err
	}
	return w.SendImage(dataURL)
}

// SendImage appends a user image given as a data URL and publishes it.
func (w *Widget) SendImage(dataURL string) error {
	if !isImageDataURL(dataURL) {
		return fmt.Errorf("%w: not an image data URL", ErrUnsupportedAttachment)
	}
	store, _, ok := w.mounted()
	if !ok {
		return ErrNotInitialized
	}
	store.Append(chat.ImageDraft(chat.OriginUser, dataURL))
	w.publishImage(dataURL)
	return nil
}

// ImageDataURL sniffs data and encodes it as a base64 data URL.
func ImageDataURL(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrUnsupportedAttachment)
	}
	if len(data) > MaxAttachmentBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds limit", ErrUnsupportedAttachment, len(data))
	}
	if !filetype.IsImage(data) {
		return "", fmt.Errorf("%w: unrecognized content", ErrUnsupportedAttachment)
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", fmt.Errorf("%w: unrecognized content", ErrUnsupportedAttachment)
	}
	return "data:" + kind.MIME.Value + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func isImageDataURL(s string) bool {
	header, payload, ok := strings.Cut(s, ",")
	return ok && payload != "" &&
		strings.HasPrefix(header, "data:image/") &&
		strings.HasSuffix(header, ";base64")
}
