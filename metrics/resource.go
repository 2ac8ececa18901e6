package metrics

import "fmt"

// ResourceKind tags which variant of the Resource/Consumer tagged union is
// populated. Resource and Consumer share the same kind space.
type ResourceKind uint8

const (
	LocalMachine ResourceKind = iota
	CpuPackage
	Cpu
	Gpu
	ControlGroup
	Process
	Custom
)

func (k ResourceKind) String() string {
	switch k {
	case LocalMachine:
		return "local_machine"
	case CpuPackage:
		return "cpu_package"
	case Cpu:
		return "cpu"
	case Gpu:
		return "gpu"
	case ControlGroup:
		return "control_group"
	case Process:
		return "process"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// ResourceID is the tagged-union identifier of a Resource or a Consumer.
// Exactly the fields relevant to Kind are populated; the zero value is
// LocalMachine, which carries no id.
type ResourceID struct {
	Kind       ResourceKind
	Numeric    uint32 // CpuPackage(id) | Cpu(id) | Process(pid)
	Text       string // Gpu(bus_id) | ControlGroup(path)
	CustomKind string // Custom(kind, id)
	CustomID   string
}

// LocalMachineResource is the singleton LocalMachine resource/consumer.
var LocalMachineResource = ResourceID{Kind: LocalMachine}

func NewCpuPackageResource(id uint32) ResourceID   { return ResourceID{Kind: CpuPackage, Numeric: id} }
func NewCpuResource(id uint32) ResourceID          { return ResourceID{Kind: Cpu, Numeric: id} }
func NewGpuResource(busID string) ResourceID       { return ResourceID{Kind: Gpu, Text: busID} }
func NewControlGroupResource(path string) ResourceID {
	return ResourceID{Kind: ControlGroup, Text: path}
}
func NewProcessResource(pid uint32) ResourceID { return ResourceID{Kind: Process, Numeric: pid} }
func NewCustomResource(kind, id string) ResourceID {
	return ResourceID{Kind: Custom, CustomKind: kind, CustomID: id}
}

// ID renders the tagged union's id payload as a single string, empty for
// LocalMachine, matching the CSV output contract's empty resource_id column.
func (r ResourceID) ID() string {
	switch r.Kind {
	case LocalMachine:
		return ""
	case CpuPackage, Cpu, Process:
		return fmt.Sprintf("%d", r.Numeric)
	case Gpu, ControlGroup:
		return r.Text
	case Custom:
		return r.CustomID
	default:
		return ""
	}
}

// KindName returns the Kind's wire name, or CustomKind for the Custom
// variant (so "custom" resources report their own kind string).
func (r ResourceID) KindName() string {
	if r.Kind == Custom {
		return r.CustomKind
	}
	return r.Kind.String()
}
