package metrics

import "fmt"

// UnitPrefix is an SI-style magnitude prefix applied to a base unit.
type UnitPrefix string

const (
	PrefixNone  UnitPrefix = ""
	PrefixKilo  UnitPrefix = "k"
	PrefixMilli UnitPrefix = "m"
	PrefixMicro UnitPrefix = "u"
	PrefixNano  UnitPrefix = "n"
)

// Unit is a composite unit: an optional magnitude prefix over a base unit,
// with an optional custom display name overriding the base/prefix pair
// (e.g. a plugin-specific unit the registry doesn't know by name).
type Unit struct {
	Prefix UnitPrefix
	Base   string
	Custom string
}

// UnitUnity is the dimensionless unit, used by counters with no physical
// quantity (request counts, event counts, ...).
var UnitUnity = Unit{Base: "unity"}

// DisplayName returns Custom when it is set, otherwise the prefix followed
// by the base, e.g. "kJ" for Prefix "k" and Base "J". There is no table of
// long unit names.
func (u Unit) DisplayName() string {
	if u.Custom != "" {
		return u.Custom
	}
	return string(u.Prefix) + u.Base
}

func (u Unit) String() string {
	return fmt.Sprintf("%s%s", u.Prefix, u.Base)
}
