package cost

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Count 积分数量（非负小数），一旦挂到消息上就不再修改
type Count struct {
	d decimal.Decimal
}

// Zero 零积分
var Zero = Count{}

// NewCount 由浮点数创建
func NewCount(v float64) Count {
	return Count{d: decimal.NewFromFloat(v)}
}

// NewCountFromDecimal 由 decimal 创建
func NewCountFromDecimal(d decimal.Decimal) Count {
	return Count{d: d}
}

// ParseCount 解析字符串形式的积分
func ParseCount(s string) (Count, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid count %q: %w", s, err)
	}
	return Count{d: d}, nil
}

// Add 相加
func (c Count) Add(o Count) Count {
	return Count{d: c.d.Add(o.d)}
}

// Sub 相减
func (c Count) Sub(o Count) Count {
	return Count{d: c.d.Sub(o.d)}
}

// Decimal 返回底层 decimal
func (c Count) Decimal() decimal.Decimal {
	return c.d
}

// IsZero 是否为零
func (c Count) IsZero() bool {
	return c.d.IsZero()
}

// IsPositive 是否大于零
func (c Count) IsPositive() bool {
	return c.d.IsPositive()
}

// Equal 数值相等
func (c Count) Equal(o Count) bool {
	return c.d.Equal(o.d)
}

// Float64 近似浮点值
func (c Count) Float64() float64 {
	f, _ := c.d.Float64()
	return f
}

func (c Count) String() string {
	return c.d.String()
}

// MarshalJSON 序列化为 JSON 数字
func (c Count) MarshalJSON() ([]byte, error) {
	return []byte(c.d.String()), nil
}

// UnmarshalJSON 兼容数字与字符串
func (c *Count) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err2 := json.Unmarshal(data, &s); err2 != nil {
			return err
		}
		raw = json.Number(s)
	}
	d, err := decimal.NewFromString(raw.String())
	if err != nil {
		return err
	}
	c.d = d
	return nil
}

// MarshalBSONValue 以 Decimal128 存储，便于 $inc
func (c Count) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(c.d.String())
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue 读取 Decimal128/double/int/string
func (c *Count) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return err
		}
		c.d = d
	case bsontype.Double:
		c.d = decimal.NewFromFloat(rv.Double())
	case bsontype.Int32:
		c.d = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		c.d = decimal.NewFromInt(rv.Int64())
	case bsontype.String:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return err
		}
		c.d = d
	case bsontype.Null:
		c.d = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into cost.Count", t)
	}
	return nil
}
