package realtime

// Event names carried on the realtime channel.
const (
	EventText  = "text_message"
	EventImage = "image_message"
)

// Frame is the unit exchanged with the relay: an event name and its string
// payload. There is deliberately no id, sender or acknowledgement.
type Frame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Known reports whether the relay should forward this frame.
func (f Frame) Known() bool {
	return f.Event == EventText || f.Event == EventImage
}

// TextFrame wraps a text payload.
func TextFrame(text string) Frame { return Frame{Event: EventText, Data: text} }

// ImageFrame wraps a data URL payload.
func ImageFrame(dataURL string) Frame { return Frame{Event: EventImage, Data: dataURL} }
