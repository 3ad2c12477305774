package cost

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Flag 计费维度选择位
type Flag int

const (
	Input Flag = 1 << iota
	Output
	Size256x256
	Size512x512
	Size1024x1024
	Size1024x1792
	Size1792x1024
	QualitySD
	QualityHD
)

// supportedFlags 所有已知维度
const supportedFlags = Input | Output |
	Size256x256 | Size512x512 | Size1024x1024 | Size1024x1792 | Size1792x1024 |
	QualitySD | QualityHD

// Has 是否包含某一位
func (f Flag) Has(o Flag) bool {
	return f&o != 0
}

// elevenLabsModels 共用 "elevenlabs" 费率的语音模型
var elevenLabsModels = map[string]bool{
	"eleven_multilingual_v2": true,
	"eleven_multilingual_v1": true,
	"eleven_monolingual_v1":  true,
}

// Calculator 按费率表把用量换算成积分
// 费率表只描述价格，计费维度（输入/输出、画质、尺寸）由 Flag 决定
type Calculator struct {
	rates Rates
}

// NewCalculator 创建计费器
func NewCalculator(rates Rates) *Calculator {
	if rates == nil {
		rates = Rates{}
	}
	return &Calculator{rates: rates}
}

// Rates 返回费率表
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Calculate 计算 amount 单位用量在 model 上的费用
// 不传 opts 表示未指定维度；传了但全部不在支持范围内时费用为 0
func (c *Calculator) Calculate(amount float64, model string, opts ...Flag) Count {
	n := decimal.NewFromFloat(amount)

	if rate, ok := c.rates[model]; ok {
		return Count{d: n.Mul(rate)}
	}

	var opt Flag
	for _, o := range opts {
		opt |= o
	}

	if len(opts) > 0 && opt&supportedFlags == 0 {
		return Zero
	}

	if opt.Has(Input) {
		if rate, ok := c.rates[model+"-input"]; ok {
			return Count{d: n.Mul(rate)}
		}
	}

	if rate, ok := c.rates[model+"-output"]; ok {
		return Count{d: n.Mul(rate)}
	}

	if elevenLabsModels[model] {
		return c.lookup(n, "elevenlabs")
	}

	switch model {
	case "dall-e-3":
		quality := "hd"
		if opt.Has(QualitySD) {
			quality = "sd"
		}
		size := "1792"
		if opt.Has(Size1024x1024) {
			size = "1024"
		}
		return c.lookup(n, "dall-e-3-"+quality+"-"+size)
	case "dall-e-2":
		size := "1024"
		if opt.Has(Size512x512) {
			size = "512"
		} else if opt.Has(Size256x256) {
			size = "256"
		}
		return c.lookup(n, "dall-e-2-"+size)
	}

	return Zero
}

func (c *Calculator) lookup(n decimal.Decimal, key string) Count {
	rate, ok := c.rates[key]
	if !ok {
		return Zero
	}
	return Count{d: n.Mul(rate)}
}

// SizeFlag 把像素尺寸映射为尺寸位，未知尺寸返回 0
func SizeFlag(width, height int) Flag {
	switch {
	case width == 256 && height == 256:
		return Size256x256
	case width == 512 && height == 512:
		return Size512x512
	case width == 1024 && height == 1024:
		return Size1024x1024
	case width == 1024 && height == 1792:
		return Size1024x1792
	case width == 1792 && height == 1024:
		return Size1792x1024
	}
	return 0
}

// QualityFlag 把画质参数映射为画质位
func QualityFlag(quality string) Flag {
	if quality == "hd" {
		return QualityHD
	}
	return QualitySD
}

var flagNames = map[string]Flag{
	"input":     Input,
	"output":    Output,
	"256x256":   Size256x256,
	"512x512":   Size512x512,
	"1024x1024": Size1024x1024,
	"1024x1792": Size1024x1792,
	"1792x1024": Size1792x1024,
	"sd":        QualitySD,
	"hd":        QualityHD,
}

// ParseFlags 解析逗号分隔的维度名，例如 "input" 或 "hd,1024x1024"
func ParseFlags(s string) ([]Flag, error) {
	var out []Flag
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		f, ok := flagNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown cost flag %q", name)
		}
		out = append(out, f)
	}
	return out, nil
}
