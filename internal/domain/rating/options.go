package rating

// Policy decides what a replay does with a match that fails.
type Policy int

const (
	// PolicySkip leaves the failing match out, reports it and keeps going.
	PolicySkip Policy = iota
	// PolicyAbort stops at the first failing match and returns its error.
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "skip"
}

// ParsePolicy maps "skip" and "abort"; anything else is skip.
func ParsePolicy(s string) Policy {
	if s == "abort" {
		return PolicyAbort
	}
	return PolicySkip
}

// Default engine constants.
const (
	DefaultProvisionalK         = 64
	DefaultEstablishedK         = 32
	DefaultProvisionalThreshold = 10
	DefaultFloor                = 100
)

// Option configures an Engine.
type Option func(*Engine)

// WithKFactors sets the provisional and established K-factors.
func WithKFactors(provisional, established float64) Option {
	return func(e *Engine) {
		if provisional > 0 {
			e.provisionalK = provisional
		}
		if established > 0 {
			e.establishedK = established
		}
	}
}

// WithProvisionalThreshold sets how many prior matches make a player established.
func WithProvisionalThreshold(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.threshold = n
		}
	}
}

// WithFloor sets the minimum rating.
func WithFloor(floor int) Option {
	return func(e *Engine) {
		if floor > 0 {
			e.floor = floor
		}
	}
}

// WithPolicy sets the replay failure policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}
