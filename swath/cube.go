package swath

import "fmt"

// ChannelSource yields single channel images from a multi-dimensional
// swath indexed by [row, col, channel, group].
type ChannelSource interface {
	Shape() (height, width, channels, groups int)
	Channel(channel, group int) (*Image, error)
}

// Cube is an in-memory [row, col, channel, group] float32 array.
type Cube struct {
	Height   int
	Width    int
	Channels int
	Groups   int
	Data     []float32
}

// NewCube allocates a zeroed cube.
func NewCube(height, width, channels, groups int) *Cube {
	return &Cube{
		Height:   height,
		Width:    width,
		Channels: channels,
		Groups:   groups,
		Data:     make([]float32, height*width*channels*groups),
	}
}

func (c *Cube) index(row, col, channel, group int) int {
	return ((row*c.Width+col)*c.Channels+channel)*c.Groups + group
}

// Set stores v at [row, col, channel, group].
func (c *Cube) Set(row, col, channel, group int, v float32) {
	c.Data[c.index(row, col, channel, group)] = v
}

// At returns the sample at [row, col, channel, group].
func (c *Cube) At(row, col, channel, group int) float32 {
	return c.Data[c.index(row, col, channel, group)]
}

func (c *Cube) Shape() (int, int, int, int) {
	return c.Height, c.Width, c.Channels, c.Groups
}

// Channel copies the [:, :, channel, group] slice into a new image.
func (c *Cube) Channel(channel, group int) (*Image, error) {
	if len(c.Data) != c.Height*c.Width*c.Channels*c.Groups {
		return nil, fmt.Errorf("cube data length %d does not match shape %dx%dx%dx%d", len(c.Data), c.Height, c.Width, c.Channels, c.Groups)
	}
	if err := checkSlice(c, channel, group); err != nil {
		return nil, err
	}
	img := &Image{Height: c.Height, Width: c.Width, Data: make([]float32, c.Height*c.Width)}
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			img.Data[row*c.Width+col] = c.Data[c.index(row, col, channel, group)]
		}
	}
	return img, nil
}

type stitched struct {
	parts []ChannelSource
}

// Concat joins sources along the channel axis in argument order. Height,
// width and group count must agree. Channels are neither reordered nor
// deduplicated.
func Concat(sources ...ChannelSource) (ChannelSource, error) {
	if len(sources) == 0 {
		return nil, &EmptySourceError{}
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	h, w, _, g := sources[0].Shape()
	for _, s := range sources[1:] {
		sh, sw, _, sg := s.Shape()
		if sh != h || sw != w {
			return nil, &ShapeMismatchError{What: "band group", Expected: [2]int{h, w}, Got: [2]int{sh, sw}}
		}
		if sg != g {
			return nil, fmt.Errorf("band group count mismatch: %d vs %d", g, sg)
		}
	}
	return &stitched{parts: sources}, nil
}

func (s *stitched) Shape() (int, int, int, int) {
	h, w, _, g := s.parts[0].Shape()
	total := 0
	for _, p := range s.parts {
		_, _, c, _ := p.Shape()
		total += c
	}
	return h, w, total, g
}

func (s *stitched) Channel(channel, group int) (*Image, error) {
	if err := checkSlice(s, channel, group); err != nil {
		return nil, err
	}
	for _, p := range s.parts {
		_, _, c, _ := p.Shape()
		if channel < c {
			return p.Channel(channel, group)
		}
		channel -= c
	}
	return nil, fmt.Errorf("channel out of range")
}

func checkSlice(src ChannelSource, channel, group int) error {
	_, _, channels, groups := src.Shape()
	if channel < 0 || channel >= channels {
		return fmt.Errorf("channel %d out of range [0, %d)", channel, channels)
	}
	if group < 0 || group >= groups {
		return fmt.Errorf("band group %d out of range [0, %d)", group, groups)
	}
	return nil
}
