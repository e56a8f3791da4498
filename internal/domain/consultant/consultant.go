package consultant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName   = errors.New("consultant name cannot be empty")
	ErrInvalidRate = errors.New("hourly rate must be positive")
)

// Consultant carries only the attributes the engine's invariants and pricing
// touch. Bios, testimonials and other display fields are read-only
// projections owned elsewhere.
type Consultant struct {
	id              uuid.UUID
	displayName     string
	serviceTier     string
	hourlyRateCents int64
	currency        string
}

func New(id uuid.UUID, displayName, serviceTier string, hourlyRateCents int64, currency string) (*Consultant, error) {
	if displayName == "" {
		return nil, ErrEmptyName
	}
	if hourlyRateCents <= 0 {
		return nil, ErrInvalidRate
	}
	return &Consultant{
		id:              id,
		displayName:     displayName,
		serviceTier:     serviceTier,
		hourlyRateCents: hourlyRateCents,
		currency:        currency,
	}, nil
}

func (c *Consultant) ID() uuid.UUID          { return c.id }
func (c *Consultant) DisplayName() string    { return c.displayName }
func (c *Consultant) ServiceTier() string    { return c.serviceTier }
func (c *Consultant) HourlyRateCents() int64 { return c.hourlyRateCents }
func (c *Consultant) Currency() string       { return c.currency }

// PriceFor prices a consultation of the given length against the hourly
// rate, rounding to whole cents per started minute.
func (c *Consultant) PriceFor(duration time.Duration) int64 {
	minutes := int64(duration / time.Minute)
	return c.hourlyRateCents * minutes / 60
}
