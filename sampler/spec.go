package sampler

import (
	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/tensor"
)

// OutputSpec describes the dtype and shape a consumer expects for one
// position in the flattened tensor list a Sample produces. A Shape
// dimension of -1 means "any size accepted" (spec.md §4.5,
// "ValidateAgainstOutputSpec").
type OutputSpec struct {
	DType tensor.DType
	Shape []int64
}

// Mode selects which Sample accessor a signature is being checked
// against, since AsBatchedTimesteps introduces a leading batch dimension
// that NextTimestep and AsTrajectory do not.
type Mode int

const (
	// ModeTimestep validates the output of Sample.NextTimestep.
	ModeTimestep Mode = iota
	// ModeBatchedTimesteps validates the output of
	// Sample.AsBatchedTimesteps, where every data column gains a leading
	// batch dimension relative to the per-timestep signature.
	ModeBatchedTimesteps
	// ModeTrajectory validates the output of Sample.AsTrajectory.
	ModeTrajectory
)

// headerColumns is the number of [key, probability, table_size, priority]
// scalar columns every Sample accessor prepends before the data columns
// (sampledata.Sample.header). Signature checking only applies to the
// data columns, so it always starts at this index: an Open Question in
// the original design ("should the header columns be validated too?")
// resolved here as no, since their dtypes are fixed by construction and
// never come from the caller's signature.
const headerColumns = 4

// ValidateAgainstOutputSpec checks that data matches signature under
// mode, returning an InvalidArgument error describing the first
// mismatch. A nil signature skips validation entirely.
func ValidateAgainstOutputSpec(data []tensor.Tensor, signature []OutputSpec, mode Mode) error {
	if signature == nil {
		return nil
	}
	if len(data) != headerColumns+len(signature) {
		return errkind.New(errkind.InvalidArgument,
			"signature mismatch: got %d data columns, expected %d", len(data)-headerColumns, len(signature))
	}

	for i, spec := range signature {
		got := data[i+headerColumns]
		if got.DType != spec.DType {
			return errkind.New(errkind.InvalidArgument,
				"signature mismatch at column %d: got dtype %s, expected %s", i, got.DType, spec.DType)
		}

		wantShape := spec.Shape
		if mode == ModeBatchedTimesteps {
			// The batched-timesteps accessor tiles/concats a leading
			// dimension onto every column; the signature describes the
			// per-timestep shape, so compare it against the data's shape
			// with dimension 0 stripped.
			if got.Rank() == 0 {
				return errkind.New(errkind.InvalidArgument,
					"signature mismatch at column %d: got scalar shape in batched-timesteps mode", i)
			}
			if err := checkShape(got.Shape[1:], wantShape, i); err != nil {
				return err
			}
			continue
		}

		if err := checkShape(got.Shape, wantShape, i); err != nil {
			return err
		}
	}
	return nil
}

func checkShape(got, want []int64, column int) error {
	if len(got) != len(want) {
		return errkind.New(errkind.InvalidArgument,
			"signature mismatch at column %d: got rank %d, expected rank %d", column, len(got), len(want))
	}
	for i, dim := range want {
		if dim == -1 {
			continue
		}
		if got[i] != dim {
			return errkind.New(errkind.InvalidArgument,
				"signature mismatch at column %d: got dim %d = %d, expected %d", column, i, got[i], dim)
		}
	}
	return nil
}
