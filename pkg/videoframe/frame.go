package videoframe

type Dimensions struct {
	W, H int
}

// Frame is a single raw decoded picture taken from a video asset,
// prior to conversion into a displayable image format.
type Frame interface {
	// DataRef exposes the backend specific pixel buffer.
	DataRef() interface{}
	Dimensions() Dimensions
	// Timestamp is the asset time in seconds this frame was decoded at.
	Timestamp() float64
	Close()
}
