package metrics

import "github.com/san-kum/spherique/internal/sim"

// Population is the mean live particle count.
type Population struct {
	name    string
	sum     float64
	samples int
}

func NewPopulation() *Population {
	return &Population{
		name: "population",
	}
}

func (p *Population) Name() string {
	return p.name
}

func (p *Population) Observe(_ int, w *sim.World) {
	p.sum += float64(w.Len())
	p.samples++
}

func (p *Population) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.sum / float64(p.samples)
}

func (p *Population) Reset() {
	p.sum = 0
	p.samples = 0
}

// ContactCounter is something that reports collision corrections per step.
type ContactCounter interface {
	Contacts() int
}

// Contacts is the mean number of collision corrections per outer step.
type Contacts struct {
	name    string
	src     ContactCounter
	sum     float64
	samples int
}

func NewContacts(src ContactCounter) *Contacts {
	return &Contacts{name: "contacts", src: src}
}

func (c *Contacts) Name() string { return c.name }

func (c *Contacts) Observe(_ int, _ *sim.World) {
	c.sum += float64(c.src.Contacts())
	c.samples++
}

func (c *Contacts) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *Contacts) Reset() {
	c.sum = 0
	c.samples = 0
}
