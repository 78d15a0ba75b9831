// Package mock provides function-field mock implementations of orgkb
// service interfaces for testing.
package mock

import "github.com/orgkb/orgkb"

var _ orgkb.Parser = (*Parser)(nil)

// Parser is a mock implementation of orgkb.Parser.
type Parser struct {
	ParseFn func(pageID, sourceURL, html string) (*orgkb.Document, error)
}

func (p *Parser) Parse(pageID, sourceURL, html string) (*orgkb.Document, error) {
	return p.ParseFn(pageID, sourceURL, html)
}
