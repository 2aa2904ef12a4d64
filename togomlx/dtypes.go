package togomlx

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// promoteToCommonDType converts the operands to a common dtype based on type promotion rules.
//
// When prioritizeFloat16 is enabled, Float16+Float32 promotes to Float16 (for ARM64 optimization).
// Otherwise, standard promotion rules apply: Float64 > Float32 > Float16 > Int64 > ...
func promoteToCommonDType(operands []*Node, prioritizeFloat16 bool) []*Node {
	if len(operands) == 0 {
		return nil
	}
	targetDType := operands[0].DType()
	mixed := false
	for _, operand := range operands[1:] {
		dtype := operand.DType()
		if dtype == targetDType {
			continue
		}
		mixed = true
		if prioritizeFloat16 && isFloat16Float32Pair(targetDType, dtype) {
			targetDType = dtypes.Float16
			continue
		}
		if dtypePriority(dtype) > dtypePriority(targetDType) {
			targetDType = dtype
		}
	}
	if !mixed {
		return operands
	}
	return sliceMap(operands, func(operand *Node) *Node {
		if operand.DType() == targetDType {
			return operand
		}
		return ConvertDType(operand, targetDType)
	})
}

func isFloat16Float32Pair(a, b dtypes.DType) bool {
	return (a == dtypes.Float16 && b == dtypes.Float32) || (a == dtypes.Float32 && b == dtypes.Float16)
}

// dtypePriority returns a priority value for dtype promotion.
// Higher values are preferred in mixed-type operations.
func dtypePriority(dt dtypes.DType) int {
	switch dt {
	case dtypes.Complex128:
		return 110
	case dtypes.Complex64:
		return 105
	case dtypes.Float64:
		return 100
	case dtypes.Float32:
		return 90
	case dtypes.Float16, dtypes.BFloat16:
		return 80
	case dtypes.Int64:
		return 70
	case dtypes.Int32:
		return 60
	case dtypes.Int16:
		return 50
	case dtypes.Int8:
		return 40
	case dtypes.Uint64:
		return 35
	case dtypes.Uint32:
		return 30
	case dtypes.Uint16:
		return 25
	case dtypes.Uint8:
		return 20
	case dtypes.Bool:
		return 10
	default:
		return 0
	}
}
