package media

// PassthroughCodec implements both Encoder and Decoder by copying its input
// unchanged. It stands in for the opaque H.264/Opus codec oracles so the
// media pipeline can run, and be tested, without a real codec library wired
// in.
type PassthroughCodec struct{}

// NewPassthroughCodec returns a no-op Encoder/Decoder.
func NewPassthroughCodec() *PassthroughCodec {
	return &PassthroughCodec{}
}

func (c *PassthroughCodec) Encode(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

func (c *PassthroughCodec) Decode(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

func (c *PassthroughCodec) Close() error {
	return nil
}
