package mock

import "github.com/orgkb/orgkb"

var _ orgkb.Converter = (*Converter)(nil)

// Converter is a mock implementation of orgkb.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
