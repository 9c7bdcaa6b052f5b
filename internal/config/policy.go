package config

// AcceptPolicy decides how a route listener reacts to a failed Accept call
type AcceptPolicy string

const (
	// AcceptStop ends the route on the first accept failure
	AcceptStop AcceptPolicy = "stop"

	// AcceptRetry reports the failure and keeps accepting, throttled
	AcceptRetry AcceptPolicy = "retry"
)

// IsValid checks if the policy is known
func (p AcceptPolicy) IsValid() bool {
	return p == AcceptStop || p == AcceptRetry
}

// String returns the string representation
func (p AcceptPolicy) String() string {
	return string(p)
}
