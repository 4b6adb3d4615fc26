package descriptor

import (
	"github.com/turtacn/rxntd/pkg/chem"
	"github.com/turtacn/rxntd/pkg/errors"
)

// TopologicalFamily computes ring and rotatable-bond counts.
type TopologicalFamily struct {
	names []string
}

// NewTopologicalFamily returns the topological descriptor family.
func NewTopologicalFamily() *TopologicalFamily {
	return &TopologicalFamily{names: chem.TopologyDescriptorNames()}
}

func (*TopologicalFamily) Name() string { return FamilyTopological }

func (f *TopologicalFamily) FeatureNames() []string {
	return append([]string(nil), f.names...)
}

func (f *TopologicalFamily) Compute(structure string) (Vector, error) {
	if structure == "" {
		return Zero(len(f.names)), nil
	}
	m, err := chem.MolFromSMILES(structure)
	if err != nil {
		return Zero(len(f.names)), errors.Wrap(err, errors.ErrCodeDescriptorFailed, "topological descriptors").
			WithDetail(structure)
	}
	return Vector(chem.ComputeTopology(m).Values()), nil
}
