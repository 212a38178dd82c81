//go:build !treesitter || !cgo

package treesitter

type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) DetectBoundaries(lang string, src []byte) ([]Boundary, error) {
	return nil, ErrDisabled
}
