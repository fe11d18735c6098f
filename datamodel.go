package ftl

import (
	"io"
	"math"
	"math/big"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"

	"github.com/ftlgo/ftl/value"
)

// ParseDataModel decodes a YAML or JSON document into a data model hash.
// Keys keep their document order and numbers become exact decimals. An
// empty document gives an empty hash.
func ParseDataModel(r io.Reader) (*value.Hash, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.UnmarshalWithOptions(src, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, newErrorf(ErrInvalidType, "invalid data model: %v", err).WithCause(err)
	}
	if doc == nil {
		return value.NewHash(), nil
	}
	v := fromDocument(doc)
	h, ok := v.AsHash()
	if !ok {
		return nil, newErrorf(ErrInvalidType, "the data model must be a hash, got %s", v.TypeName())
	}
	return h, nil
}

// fromDocument converts decoded JSON or YAML into template values.
func fromDocument(doc any) value.Value {
	switch d := doc.(type) {
	case nil:
		return value.Null()
	case yaml.MapSlice:
		h := value.NewHash()
		for _, item := range d {
			k, ok := item.Key.(string)
			if !ok {
				k = value.FromAny(item.Key).String()
			}
			h.Set(k, fromDocument(item.Value))
		}
		return value.FromHash(h)
	case map[string]any:
		h := value.NewHash()
		for k, item := range d {
			h.Set(k, fromDocument(item))
		}
		return value.FromHash(h)
	case []any:
		items := make([]value.Value, len(d))
		for i, item := range d {
			items[i] = fromDocument(item)
		}
		return value.FromSlice(items)
	case float64:
		if math.IsInf(d, 0) || math.IsNaN(d) {
			return value.FromFloat(d)
		}
		return decimalValue(decimal.NewFromFloat(d))
	case uint64:
		if d > math.MaxInt64 {
			return value.FromDecimal(decimal.NewFromBigInt(new(big.Int).SetUint64(d), 0))
		}
		return value.FromInt(int64(d))
	}
	return value.FromAny(doc)
}
