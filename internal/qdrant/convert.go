package qdrant

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// UUIDID builds a point id from a UUID string.
func UUIDID(u string) *PointID {
	return qdrant.NewIDUUID(u)
}

// NumID builds a point id from an unsigned integer.
func NumID(n uint64) *PointID {
	return qdrant.NewIDNum(n)
}

// IDString renders a point id: the UUID, or the decimal number.
func IDString(id *PointID) string {
	if id == nil {
		return ""
	}
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	default:
		return ""
	}
}

func toQdrantPoint(p *Point) (*qdrant.PointStruct, error) {
	payload, err := toPayload(p.Payload)
	if err != nil {
		return nil, err
	}

	vectors := make(map[string]*qdrant.Vector, len(p.Vectors))
	for name, v := range p.Vectors {
		if v.IsSparse() {
			vectors[name] = qdrant.NewVectorSparse(v.Indices, v.Values)
		} else {
			vectors[name] = qdrant.NewVectorDense(v.Dense)
		}
	}

	return &qdrant.PointStruct{
		Id:      p.ID,
		Vectors: qdrant.NewVectorsMap(vectors),
		Payload: payload,
	}, nil
}

func toPayload(m map[string]any) (map[string]*qdrant.Value, error) {
	payload := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", k, err)
		}
		payload[k] = val
	}
	return payload, nil
}

// toValue converts a metadata value. Timestamps and Stringers become
// strings; other values are normalized by kind, so named types, every
// integer and float width, typed slices and string-keyed maps are accepted.
func toValue(v any) (*qdrant.Value, error) {
	switch val := v.(type) {
	case nil:
		return qdrant.NewValueNull(), nil
	case *qdrant.Value:
		return val, nil
	case time.Time:
		return qdrant.NewValueString(val.UTC().Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return qdrant.NewValueString(val.String()), nil
	case []byte:
		return qdrant.NewValue(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return qdrant.NewValueBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return qdrant.NewValueInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", u)
		}
		return qdrant.NewValueInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return qdrant.NewValueDouble(rv.Float()), nil
	case reflect.String:
		return qdrant.NewValue(rv.String())
	case reflect.Slice, reflect.Array:
		values := make([]*qdrant.Value, rv.Len())
		for i := range values {
			iv, err := toValue(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			values[i] = iv
		}
		return qdrant.NewValueList(&qdrant.ListValue{Values: values}), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not a string", rv.Type().Key())
		}
		fields := make(map[string]*qdrant.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			fv, err := toValue(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = fv
		}
		return qdrant.NewValueStruct(&qdrant.Struct{Fields: fields}), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return qdrant.NewValueNull(), nil
		}
		return toValue(rv.Elem().Interface())
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		result[k] = fromValue(v)
	}
	return result
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		return fromPayload(val.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := val.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = fromValue(item)
		}
		return list
	default:
		return nil
	}
}

func fromScoredPoint(p *qdrant.ScoredPoint) *ScoredPoint {
	return &ScoredPoint{
		ID:      p.GetId(),
		Score:   p.GetScore(),
		Payload: fromPayload(p.GetPayload()),
	}
}

func fromRetrievedPoint(p *qdrant.RetrievedPoint) *RetrievedPoint {
	return &RetrievedPoint{
		ID:      p.GetId(),
		Payload: fromPayload(p.GetPayload()),
	}
}
