package consultant

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidCatalog = errors.New("invalid service catalog")
	ErrUnknownService = errors.New("unknown service type")
)

// ServiceCatalog maps a service type to its consultation length. The service
// type doubles as the fee-schedule tier.
type ServiceCatalog map[string]time.Duration

// ParseServiceCatalog parses "intro:30,deep-dive:60" (minutes).
func ParseServiceCatalog(raw string) (ServiceCatalog, error) {
	catalog := ServiceCatalog{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, minStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, ErrInvalidCatalog
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(minStr))
		if err != nil || minutes <= 0 {
			return nil, ErrInvalidCatalog
		}
		catalog[strings.TrimSpace(name)] = time.Duration(minutes) * time.Minute
	}
	if len(catalog) == 0 {
		return nil, ErrInvalidCatalog
	}
	return catalog, nil
}

func (c ServiceCatalog) DurationFor(serviceType string) (time.Duration, error) {
	d, ok := c[serviceType]
	if !ok {
		return 0, ErrUnknownService
	}
	return d, nil
}
