package ws

// DefaultMaxFrameSize is a suggested value for Options.MaxFrameSize.
// WithDefaults does not apply it: a zero MaxFrameSize stays zero and
// means unlimited.
const DefaultMaxFrameSize = 1024
