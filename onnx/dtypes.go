package onnx

import (
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// DataType is an ONNX tensor element type, with the same values as ONNX TensorProto.DataType.
type DataType int32

const (
	DataTypeUndefined  DataType = 0
	DataTypeFloat      DataType = 1
	DataTypeUint8      DataType = 2
	DataTypeInt8       DataType = 3
	DataTypeUint16     DataType = 4
	DataTypeInt16      DataType = 5
	DataTypeInt32      DataType = 6
	DataTypeInt64      DataType = 7
	DataTypeString     DataType = 8
	DataTypeBool       DataType = 9
	DataTypeFloat16    DataType = 10
	DataTypeDouble     DataType = 11
	DataTypeUint32     DataType = 12
	DataTypeUint64     DataType = 13
	DataTypeComplex64  DataType = 14
	DataTypeComplex128 DataType = 15
	DataTypeBFloat16   DataType = 16
)

var dataTypeNames = map[string]DataType{
	"FLOAT":      DataTypeFloat,
	"UINT8":      DataTypeUint8,
	"INT8":       DataTypeInt8,
	"UINT16":     DataTypeUint16,
	"INT16":      DataTypeInt16,
	"INT32":      DataTypeInt32,
	"INT64":      DataTypeInt64,
	"STRING":     DataTypeString,
	"BOOL":       DataTypeBool,
	"FLOAT16":    DataTypeFloat16,
	"DOUBLE":     DataTypeDouble,
	"UINT32":     DataTypeUint32,
	"UINT64":     DataTypeUint64,
	"COMPLEX64":  DataTypeComplex64,
	"COMPLEX128": DataTypeComplex128,
	"BFLOAT16":   DataTypeBFloat16,
}

// DataTypeByName returns the DataType for an ONNX type name, like "FLOAT" or "int64" (case-insensitive).
// Opset 1 Cast took the target type by name.
func DataTypeByName(name string) (DataType, error) {
	dt, found := dataTypeNames[strings.ToUpper(name)]
	if !found {
		return DataTypeUndefined, errors.Errorf("unknown ONNX data type name %q", name)
	}
	return dt, nil
}

// DTypeForONNX converts an ONNX data type to a GoMLX data type.
func DTypeForONNX(onnxDType DataType) (dtypes.DType, error) {
	switch onnxDType {
	case DataTypeFloat:
		return dtypes.Float32, nil
	case DataTypeFloat16:
		return dtypes.Float16, nil
	case DataTypeBFloat16:
		return dtypes.BFloat16, nil
	case DataTypeDouble:
		return dtypes.Float64, nil
	case DataTypeInt32:
		return dtypes.Int32, nil
	case DataTypeInt64:
		return dtypes.Int64, nil
	case DataTypeUint8:
		return dtypes.Uint8, nil
	case DataTypeInt8:
		return dtypes.Int8, nil
	case DataTypeInt16:
		return dtypes.Int16, nil
	case DataTypeUint16:
		return dtypes.Uint16, nil
	case DataTypeUint32:
		return dtypes.Uint32, nil
	case DataTypeUint64:
		return dtypes.Uint64, nil
	case DataTypeBool:
		return dtypes.Bool, nil
	case DataTypeComplex64:
		return dtypes.Complex64, nil
	case DataTypeComplex128:
		return dtypes.Complex128, nil
	default:
		return dtypes.InvalidDType, errors.Errorf("unsupported/unknown ONNX data type %d", onnxDType)
	}
}
