package control

import (
	"github.com/pkg/errors"
)

// ErrUnknownPolicy is returned when parsing an unrecognized policy name.
var ErrUnknownPolicy = errors.New("control: unknown policy")

// Policy decides what happens when a maneuver completes.
type Policy int

const (
	PolicyCoast Policy = iota
	PolicyBrake
	PolicyHold
	PolicyContinue
)

var policyNames = [...]string{"coast", "brake", "hold", "continue"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return "unknown"
	}
	return policyNames[p]
}

// Stops reports whether the policy brings the motor to rest at the end.
func (p Policy) Stops() bool { return p != PolicyContinue }

// Passive reports whether the policy ends control.
func (p Policy) Passive() bool { return p == PolicyCoast || p == PolicyBrake }

// ParsePolicy looks up a policy by name.
func ParsePolicy(name string) (Policy, error) {
	for i, n := range policyNames {
		if n == name {
			return Policy(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownPolicy, "%q", name)
}

// MarshalText implements encoding.TextMarshaler so policies read well in
// YAML and JSON.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type is the kind of maneuver under control.
type Type int

const (
	TypeNone Type = iota
	TypePosition
	TypeTimed
)

func (t Type) String() string {
	switch t {
	case TypePosition:
		return "position"
	case TypeTimed:
		return "timed"
	default:
		return "none"
	}
}
