package pipeline

// Component is a self-identifying middleware, typically a struct holding
// its own configuration.
type Component[Req, Res any] interface {
	ID() string
	Wrap(next Handler[Req, Res], cfg Config) Handler[Req, Res]
}

// Join registers c on p at rank under c.ID().
func Join[Req, Res any](p *Pipeline[Req, Res], c Component[Req, Res], rank int) error {
	return p.Add(c.ID(), c.Wrap, rank)
}

// Leave removes c from p.
func Leave[Req, Res any](p *Pipeline[Req, Res], c Component[Req, Res]) error {
	return p.Remove(c.ID())
}

