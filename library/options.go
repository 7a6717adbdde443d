package library

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"library-circulation/internal/logger"
	"library-circulation/internal/metrics"
	"library-circulation/internal/validation"
)

// Default circulation policy.
const (
	DefaultLoanDays        = 14
	DefaultReservationDays = 14
)

// Option configures the services built by NewLibraryManager and the
// individual service constructors.
type Option func(*settings)

// WithClock replaces time.Now, mainly for tests that need "today" fixed.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithLoanDays sets the loan period used when IssueBook is given zero days.
func WithLoanDays(days int) Option {
	return func(s *settings) {
		if days > 0 {
			s.loanDays = days
		}
	}
}

// WithReservationDays sets how long a reservation holds by default.
func WithReservationDays(days int) Option {
	return func(s *settings) {
		if days > 0 {
			s.reservationDays = days
		}
	}
}

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *settings) { s.passwordCost = cost }
}

type settings struct {
	now             func() time.Time
	log             *logger.Logger
	metrics         *metrics.Metrics
	validate        *validation.Validator
	loanDays        int
	reservationDays int
	passwordCost    int
}

func newSettings(opts []Option) *settings {
	s := &settings{
		now:             time.Now,
		loanDays:        DefaultLoanDays,
		reservationDays: DefaultReservationDays,
		passwordCost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.validate == nil {
		s.validate = validation.New()
	}
	return s
}

func (s *settings) today() Date { return DateOf(s.now()) }
