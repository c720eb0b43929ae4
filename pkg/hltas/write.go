package hltas

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Write 将 Document 序列化为 HLTAS 文本（LF 换行）。
// 输出对 Parse 稳定：Write(Parse(Write(d))) 与 Write(d) 逐字节相同。
func Write(w io.Writer, d *Document) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("version " + supportedVersion + "\n")
	for _, p := range d.Properties {
		bw.WriteString(p.Key)
		if p.Value != "" {
			bw.WriteByte(' ')
			bw.WriteString(p.Value)
		}
		bw.WriteByte('\n')
	}
	bw.WriteString("frames\n")
	for i, l := range d.Lines {
		s, err := FormatLine(l)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		bw.WriteString(s)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// String 返回 Write 的文本结果；序列化失败时返回空串。
func (d *Document) String() string {
	var sb strings.Builder
	if err := Write(&sb, d); err != nil {
		return ""
	}
	return sb.String()
}

// FormatLine 渲染单行。
func FormatLine(l Line) (string, error) {
	switch v := l.(type) {
	case *FrameBulk:
		return formatFrameBulk(v)
	case *Comment:
		return "//" + v.Text, nil
	case *VectorialConstraint:
		return formatConstraint(v.Constraint)
	case *Change:
		return fmt.Sprintf("change %s to %s over %s s", v.Target, formatFloat32(v.FinalValue), formatFloat32(v.Over)), nil
	case *TargetYawOverride:
		parts := make([]string, len(v.Yaws))
		for i, y := range v.Yaws {
			parts[i] = formatFloat32(y)
		}
		return "target_yaw_override " + strings.Join(parts, " "), nil
	case *Directive:
		return v.Text, nil
	default:
		return "", fmt.Errorf("unsupported line type %T", l)
	}
}

func formatFrameBulk(fb *FrameBulk) (string, error) {
	var b strings.Builder
	auto, yaw, err := formatAutoActions(fb.AutoActions)
	if err != nil {
		return "", err
	}
	b.WriteString(auto)
	b.WriteByte('|')
	mk := fb.MovementKeys
	b.WriteString(formatKeys("flrbud", mk.Forward, mk.Left, mk.Right, mk.Back, mk.Up, mk.Down))
	b.WriteByte('|')
	ak := fb.ActionKeys
	b.WriteString(formatKeys("jdu12r", ak.Jump, ak.Duck, ak.Use, ak.Attack1, ak.Attack2, ak.Reload))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(fb.FrameTime, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(yaw)
	b.WriteByte('|')
	if fb.Pitch != nil {
		b.WriteString(formatFloat32(*fb.Pitch))
	} else {
		b.WriteByte('-')
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(uint64(fb.FrameCount), 10))
	if fb.ConsoleCommand != "" {
		b.WriteByte('|')
		b.WriteString(fb.ConsoleCommand)
	}
	return b.String(), nil
}

// formatAutoActions 返回第一列与 yaw 列。
func formatAutoActions(aa AutoActions) (string, string, error) {
	var b [autoActionsWidth]byte
	yaw := "-"
	switch m := aa.Movement.(type) {
	case nil:
		copy(b[:3], "---")
	case SetYaw:
		copy(b[:3], "---")
		yaw = formatFloat32(m.Yaw)
	case Strafe:
		if m.Type > ConstSpeed {
			return "", "", fmt.Errorf("unknown strafe type %d", m.Type)
		}
		b[0] = 's'
		b[1] = '0' + byte(m.Type)
		switch d := m.Dir.(type) {
		case StrafeLeft:
			b[2] = '0'
		case StrafeRight:
			b[2] = '1'
		case StrafeBest:
			b[2] = '2'
		case StrafeYaw:
			b[2] = '3'
			yaw = formatFloat32(d.Yaw)
		case StrafePoint:
			b[2] = '4'
			yaw = formatFloat32(d.X) + " " + formatFloat32(d.Y)
		case StrafeLine:
			b[2] = '5'
			yaw = formatFloat32(d.Yaw)
		case StrafeLeftRight:
			b[2] = '6'
			yaw = strconv.FormatUint(uint64(d.Count), 10)
		case StrafeRightLeft:
			b[2] = '7'
			yaw = strconv.FormatUint(uint64(d.Count), 10)
		default:
			return "", "", fmt.Errorf("unknown strafe dir %T", m.Dir)
		}
	default:
		return "", "", fmt.Errorf("unknown auto movement %T", aa.Movement)
	}
	toggles := []Toggle{aa.LeaveGround, aa.Autojump, aa.Ducktap, aa.Jumpbug, aa.DuckBeforeCollision, aa.DuckBeforeGround, aa.DuckWhenJump}
	const letters = "ljdbcgw"
	for i, t := range toggles {
		switch t {
		case On:
			b[3+i] = letters[i]
		case Limited:
			b[3+i] = letters[i] - 'a' + 'A'
		default:
			b[3+i] = '-'
		}
	}
	return string(b[:]), yaw, nil
}

func formatKeys(letters string, on ...bool) string {
	b := []byte(strings.Repeat("-", len(letters)))
	for i, v := range on {
		if v {
			b[i] = letters[i]
		}
	}
	return string(b)
}

func formatConstraint(c Constraint) (string, error) {
	tol := func(t float32) string {
		if t == 0 {
			return ""
		}
		return " +-" + formatFloat32(t)
	}
	switch v := c.(type) {
	case VelocityYaw:
		return "target_yaw velocity" + tol(v.Tolerance), nil
	case AvgVelocityYaw:
		return "target_yaw velocity_avg" + tol(v.Tolerance), nil
	case VelocityYawLocking:
		return "target_yaw velocity_lock" + tol(v.Tolerance), nil
	case FixedYaw:
		return "target_yaw " + formatFloat32(v.Yaw) + tol(v.Tolerance), nil
	case YawRange:
		return "target_yaw from " + formatFloat32(v.From) + " to " + formatFloat32(v.To), nil
	default:
		return "", fmt.Errorf("unknown constraint %T", c)
	}
}

// formatFloat32: float32 最短可往返表示。
func formatFloat32(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
