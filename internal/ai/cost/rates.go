package cost

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Rates 费率表：费率键 -> 单价
// 键的形式: <model>、<model>-input、<model>-output、elevenlabs、
// dall-e-3-<sd|hd>-<1024|1792>、dall-e-2-<256|512|1024>
type Rates map[string]decimal.Decimal

// ParseRates 解析配置中的字符串费率
func ParseRates(raw map[string]string) (Rates, error) {
	rates := make(Rates, len(raw))
	for key, value := range raw {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("rate %s: %w", key, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("rate %s: must not be negative", key)
		}
		rates[key] = d
	}
	return rates, nil
}

// rateFile 费率文件结构
//
//	[rates]
//	"gpt-4o-input" = "0.000005"
//	"dall-e-2-512" = 0.018
type rateFile struct {
	Rates map[string]any `toml:"rates"`
}

// LoadRatesFile 读取 TOML 费率文件
func LoadRatesFile(path string) (map[string]string, error) {
	var f rateFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode rates file: %w", err)
	}

	out := make(map[string]string, len(f.Rates))
	for key, value := range f.Rates {
		switch v := value.(type) {
		case string:
			out[key] = v
		case int64:
			out[key] = decimal.NewFromInt(v).String()
		case float64:
			out[key] = decimal.NewFromFloat(v).String()
		default:
			return nil, fmt.Errorf("rate %s: unsupported value type %T", key, value)
		}
	}
	return out, nil
}

// Merge 用 override 覆盖 base，返回新表
func Merge(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Keys 按字典序返回费率键
func (r Rates) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
