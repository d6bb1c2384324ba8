package motor

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Type identifies a supported motor.
type Type int

const (
	TypeNone Type = iota
	TypeEV3Medium
	TypeEV3Large
	TypeInteractive
	TypeMoveHub
	TypeTechnicL
	TypeTechnicXL
	TypeTechnicSAngular
	TypeTechnicMAngular
	TypeTechnicLAngular
)

var typeNames = map[Type]string{
	TypeNone:            "none",
	TypeEV3Medium:       "ev3_m",
	TypeEV3Large:        "ev3_l",
	TypeInteractive:     "interactive",
	TypeMoveHub:         "movehub",
	TypeTechnicL:        "technic_l",
	TypeTechnicXL:       "technic_xl",
	TypeTechnicSAngular: "technic_s_angular",
	TypeTechnicMAngular: "technic_m_angular",
	TypeTechnicLAngular: "technic_l_angular",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType resolves a motor name such as "technic_m_angular".
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name && t != TypeNone {
			return t, nil
		}
	}
	return TypeNone, errors.Wrapf(ErrNotSupported, "parse motor type %q", name)
}

// Types lists every supported motor, ordered by identifier.
func Types() []Type {
	types := make([]Type, 0, len(models))
	for t := range models {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
