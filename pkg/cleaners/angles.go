package cleaners

import (
	"fmt"
	"math"

	"hltascleaner/pkg/hltas"
)

// Wrap 将角度归一到 [0, 360)。
// 对有限输入幂等：Wrap(Wrap(x)) == Wrap(x)。非有限输入原样返回 NaN。
func Wrap(angle float32) float32 {
	r := math.Mod(float64(angle), 360)
	if r < 0 {
		r += 360
	}
	out := float32(r)
	// 负的极小余数加 360 后可能在 float32 中舍入为 360；-0 统一为 0
	if out >= 360 || out == 0 {
		return 0
	}
	return out
}

// NormalizeAngles 将文档中所有角度字段归一到 [0, 360)。
// 不删除、不重排行；遇到非有限角度立即返回 *AngleError（之前的行已被改写）。
func NormalizeAngles(doc *hltas.Document) error {
	if doc == nil {
		return nil
	}
	for i, l := range doc.Lines {
		if err := normalizeLine(i, l); err != nil {
			return err
		}
	}
	return nil
}

func normalizeLine(i int, l hltas.Line) error {
	w := wrapper{index: i}
	switch v := l.(type) {
	case *hltas.FrameBulk:
		switch m := v.AutoActions.Movement.(type) {
		case hltas.SetYaw:
			m.Yaw = w.wrap("yaw", m.Yaw)
			v.AutoActions.Movement = m
		case hltas.Strafe:
			switch d := m.Dir.(type) {
			case hltas.StrafeYaw:
				d.Yaw = w.wrap("strafe yaw", d.Yaw)
				m.Dir = d
			case hltas.StrafeLine:
				d.Yaw = w.wrap("strafe line yaw", d.Yaw)
				m.Dir = d
			}
			v.AutoActions.Movement = m
		}
	case *hltas.VectorialConstraint:
		switch c := v.Constraint.(type) {
		case hltas.FixedYaw:
			c.Yaw = w.wrap("target yaw", c.Yaw)
			v.Constraint = c
		case hltas.YawRange:
			c.From = w.wrap("target yaw from", c.From)
			c.To = w.wrap("target yaw to", c.To)
			v.Constraint = c
		}
	case *hltas.Change:
		v.FinalValue = w.wrap("change final value", v.FinalValue)
	case *hltas.TargetYawOverride:
		for k := range v.Yaws {
			v.Yaws[k] = w.wrap(fmt.Sprintf("target yaw override[%d]", k), v.Yaws[k])
		}
	case *hltas.Comment, *hltas.Directive:
	default:
		panic(fmt.Sprintf("cleaners: unhandled line type %T", l))
	}
	return w.err
}

// wrapper 记录同一行内遇到的首个非有限角度；出错后不再改写。
type wrapper struct {
	index int
	err   error
}

func (w *wrapper) wrap(field string, a float32) float32 {
	if w.err != nil {
		return a
	}
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		w.err = &AngleError{Index: w.index, Field: field, Value: a}
		return a
	}
	return Wrap(a)
}
