package pipeline

import "fmt"

// ElementKind distinguishes the three kinds of element an agent builds.
type ElementKind uint8

const (
	SourceKind ElementKind = iota
	TransformKind
	OutputKind
)

func (k ElementKind) String() string {
	switch k {
	case SourceKind:
		return "source"
	case TransformKind:
		return "transform"
	case OutputKind:
		return "output"
	default:
		return "unknown"
	}
}

// ElementName is a (plugin_name, element_name) pair, unique per kind.
// SourceName, TransformName and OutputName below are thin, kind-tagged
// wrappers over it so the compiler catches a SourceName passed where an
// OutputName was expected.
type ElementName struct {
	Plugin  string
	Element string
}

func (n ElementName) String() string {
	return fmt.Sprintf("%s/%s", n.Plugin, n.Element)
}

// Validate reports whether both components are non-empty.
func (n ElementName) Validate() error {
	if n.Plugin == "" {
		return fmt.Errorf("element name: plugin must not be empty")
	}
	if n.Element == "" {
		return fmt.Errorf("element name: element must not be empty")
	}
	return nil
}

type SourceName struct{ ElementName }
type TransformName struct{ ElementName }
type OutputName struct{ ElementName }

func NewSourceName(plugin, element string) SourceName {
	return SourceName{ElementName{Plugin: plugin, Element: element}}
}

func NewTransformName(plugin, element string) TransformName {
	return TransformName{ElementName{Plugin: plugin, Element: element}}
}

func NewOutputName(plugin, element string) OutputName {
	return OutputName{ElementName{Plugin: plugin, Element: element}}
}

// matchKind selects how a Selector's Plugin/Element fields are interpreted.
type matchKind uint8

const (
	matchSingle matchKind = iota
	matchPlugin
	matchAll
)

// SourceSelector matches zero or more SourceNames: an exact (plugin,
// element) pair, every source of one plugin, or every source in the
// pipeline. The zero value is not valid; use the constructors.
type SourceSelector struct {
	kind   matchKind
	plugin string
	name   SourceName
}

func SelectSource(name SourceName) SourceSelector       { return SourceSelector{kind: matchSingle, name: name} }
func SelectSourcePlugin(plugin string) SourceSelector   { return SourceSelector{kind: matchPlugin, plugin: plugin} }
func SelectAllSources() SourceSelector                  { return SourceSelector{kind: matchAll} }

func (s SourceSelector) Matches(n SourceName) bool {
	switch s.kind {
	case matchSingle:
		return n == s.name
	case matchPlugin:
		return n.Plugin == s.plugin
	default:
		return true
	}
}

func (s SourceSelector) String() string {
	switch s.kind {
	case matchSingle:
		return s.name.String()
	case matchPlugin:
		return s.plugin + "/*"
	default:
		return "*/*"
	}
}

// TransformSelector mirrors SourceSelector for transforms.
type TransformSelector struct {
	kind   matchKind
	plugin string
	name   TransformName
}

func SelectTransform(name TransformName) TransformSelector {
	return TransformSelector{kind: matchSingle, name: name}
}
func SelectTransformPlugin(plugin string) TransformSelector {
	return TransformSelector{kind: matchPlugin, plugin: plugin}
}
func SelectAllTransforms() TransformSelector { return TransformSelector{kind: matchAll} }

func (s TransformSelector) Matches(n TransformName) bool {
	switch s.kind {
	case matchSingle:
		return n == s.name
	case matchPlugin:
		return n.Plugin == s.plugin
	default:
		return true
	}
}

func (s TransformSelector) String() string {
	switch s.kind {
	case matchSingle:
		return s.name.String()
	case matchPlugin:
		return s.plugin + "/*"
	default:
		return "*/*"
	}
}

// OutputSelector mirrors SourceSelector for outputs.
type OutputSelector struct {
	kind   matchKind
	plugin string
	name   OutputName
}

func SelectOutput(name OutputName) OutputSelector     { return OutputSelector{kind: matchSingle, name: name} }
func SelectOutputPlugin(plugin string) OutputSelector { return OutputSelector{kind: matchPlugin, plugin: plugin} }
func SelectAllOutputs() OutputSelector                { return OutputSelector{kind: matchAll} }

func (s OutputSelector) Matches(n OutputName) bool {
	switch s.kind {
	case matchSingle:
		return n == s.name
	case matchPlugin:
		return n.Plugin == s.plugin
	default:
		return true
	}
}

func (s OutputSelector) String() string {
	switch s.kind {
	case matchSingle:
		return s.name.String()
	case matchPlugin:
		return s.plugin + "/*"
	default:
		return "*/*"
	}
}
