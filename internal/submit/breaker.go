package submit

import (
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker runs fn unless the breaker is open.
type CircuitBreaker interface {
	Execute(fn func() error) error
	State() string
}

type noopBreaker struct{}

func (noopBreaker) Execute(fn func() error) error { return fn() }

func (noopBreaker) State() string { return "disabled" }

type gobreakerWrapper struct {
	cb *gobreaker.CircuitBreaker
}

func (g *gobreakerWrapper) Execute(fn func() error) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (g *gobreakerWrapper) State() string {
	return g.cb.State().String()
}

func newBreaker(enabled bool, failures int, cooldown time.Duration, onChange func(from, to string)) CircuitBreaker {
	if !enabled {
		return noopBreaker{}
	}
	settings := gobreaker.Settings{
		Name:        "herhaven-api",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: serverReachable,
	}
	if onChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			onChange(from.String(), to.String())
		}
	}
	return &gobreakerWrapper{cb: gobreaker.NewCircuitBreaker(settings)}
}
