package hltas

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax: 文本不符合 HLTAS 语法。具体位置见 *ParseError。
var ErrSyntax = errors.New("hltas: syntax error")

// ParseError 携带出错的源文本行号（1 起）。
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("hltas: line %d: %s", e.Line, e.Msg) }

func (e *ParseError) Unwrap() error { return ErrSyntax }

const (
	supportedVersion = "1"
	autoActionsWidth = 10
)

// ParseString 解析字符串形式的脚本。
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Parse 读取完整脚本并构造 Document。
// 规则：
// - 首个非空行必须为 `version 1`；
// - 其后直到 `frames` 为头部属性；
// - frames 之后逐行解析；空行忽略；CRLF 归一为 LF。
func Parse(r io.Reader) (*Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &Document{}
	const (
		stVersion = iota
		stProps
		stFrames
	)
	state := stVersion
	n := 0
	for sc.Scan() {
		n++
		raw := strings.TrimRight(sc.Text(), "\r")
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		switch state {
		case stVersion:
			key, val := splitKey(text)
			if key != "version" {
				return nil, &ParseError{Line: n, Msg: "expected version line"}
			}
			if val != supportedVersion {
				return nil, &ParseError{Line: n, Msg: fmt.Sprintf("unsupported version %q", val)}
			}
			state = stProps
		case stProps:
			if text == "frames" {
				state = stFrames
				continue
			}
			key, val := splitKey(text)
			doc.Properties = append(doc.Properties, Property{Key: key, Value: val})
		case stFrames:
			l, err := parseLine(text)
			if err != nil {
				return nil, &ParseError{Line: n, Msg: err.Error()}
			}
			doc.Lines = append(doc.Lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	switch state {
	case stVersion:
		return nil, &ParseError{Line: n, Msg: "missing version line"}
	case stProps:
		return nil, &ParseError{Line: n, Msg: "missing frames section"}
	}
	return doc, nil
}

func splitKey(s string) (string, string) {
	k, v, _ := strings.Cut(s, " ")
	return k, strings.TrimSpace(v)
}

func parseLine(s string) (Line, error) {
	if strings.HasPrefix(s, "//") {
		return &Comment{Text: s[2:]}, nil
	}
	if strings.Contains(s, "|") {
		return parseFrameBulk(s)
	}
	key, rest := splitKey(s)
	switch key {
	case "target_yaw":
		return parseTargetYaw(rest)
	case "target_yaw_override":
		return parseYawOverride(rest)
	case "change":
		return parseChange(rest)
	}
	return &Directive{Text: s}, nil
}

// parseFrameBulk: AUTO|MOVE|ACTION|frametime|yaw|pitch|count[|command]
func parseFrameBulk(s string) (*FrameBulk, error) {
	fields := strings.SplitN(s, "|", 8)
	if len(fields) < 7 {
		return nil, fmt.Errorf("frame bulk: expected at least 7 fields, got %d", len(fields))
	}
	fb := &FrameBulk{}
	if len(fields) == 8 {
		fb.ConsoleCommand = fields[7]
	}
	if err := parseAutoActions(fields[0], &fb.AutoActions); err != nil {
		return nil, err
	}
	mk, err := parseKeys(fields[1], "flrbud")
	if err != nil {
		return nil, fmt.Errorf("movement keys: %w", err)
	}
	fb.MovementKeys = MovementKeys{Forward: mk[0], Left: mk[1], Right: mk[2], Back: mk[3], Up: mk[4], Down: mk[5]}
	ak, err := parseKeys(fields[2], "jdu12r")
	if err != nil {
		return nil, fmt.Errorf("action keys: %w", err)
	}
	fb.ActionKeys = ActionKeys{Jump: ak[0], Duck: ak[1], Use: ak[2], Attack1: ak[3], Attack2: ak[4], Reload: ak[5]}

	ft, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil || ft < 0 || math.IsNaN(ft) || math.IsInf(ft, 0) {
		return nil, fmt.Errorf("invalid frame time %q", fields[3])
	}
	fb.FrameTime = ft

	if err := parseYawField(strings.TrimSpace(fields[4]), &fb.AutoActions); err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(fields[5]); p != "-" {
		v, err := parseFloat32(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pitch %q", p)
		}
		fb.Pitch = &v
	}
	cnt, err := strconv.ParseUint(strings.TrimSpace(fields[6]), 10, 32)
	if err != nil || cnt == 0 {
		return nil, fmt.Errorf("invalid frame count %q", fields[6])
	}
	fb.FrameCount = uint32(cnt)
	return fb, nil
}

func parseAutoActions(s string, aa *AutoActions) error {
	if len(s) != autoActionsWidth {
		return fmt.Errorf("auto actions: expected %d characters, got %q", autoActionsWidth, s)
	}
	switch {
	case s[:3] == "---":
	case s[0] == 's':
		if s[1] < '0' || s[1] > '3' {
			return fmt.Errorf("auto actions: unknown strafe type %q", s[1])
		}
		if s[2] < '0' || s[2] > '7' {
			return fmt.Errorf("auto actions: unknown strafe dir %q", s[2])
		}
		// 方向携带的参数在 yaw 列中补全
		aa.Movement = Strafe{Type: StrafeType(s[1] - '0'), Dir: strafeDirPlaceholder(s[2] - '0')}
	default:
		return fmt.Errorf("auto actions: invalid strafe %q", s[:3])
	}
	toggles := []*Toggle{&aa.LeaveGround, &aa.Autojump, &aa.Ducktap, &aa.Jumpbug, &aa.DuckBeforeCollision, &aa.DuckBeforeGround, &aa.DuckWhenJump}
	const letters = "ljdbcgw"
	for i, p := range toggles {
		c := s[3+i]
		switch c {
		case '-':
			*p = Off
		case letters[i]:
			*p = On
		case letters[i] - 'a' + 'A':
			*p = Limited
		default:
			return fmt.Errorf("auto actions: unexpected %q at position %d", c, 3+i)
		}
	}
	return nil
}

func strafeDirPlaceholder(d byte) StrafeDir {
	switch d {
	case 0:
		return StrafeLeft{}
	case 1:
		return StrafeRight{}
	case 2:
		return StrafeBest{}
	case 3:
		return StrafeYaw{}
	case 4:
		return StrafePoint{}
	case 5:
		return StrafeLine{}
	case 6:
		return StrafeLeftRight{}
	default:
		return StrafeRightLeft{}
	}
}

// parseYawField 依据已知的扫射方向解析 yaw 列。
func parseYawField(s string, aa *AutoActions) error {
	st, strafing := aa.Movement.(Strafe)
	if !strafing {
		if s == "-" {
			return nil
		}
		v, err := parseFloat32(s)
		if err != nil {
			return fmt.Errorf("invalid yaw %q", s)
		}
		aa.Movement = SetYaw{Yaw: v}
		return nil
	}
	switch st.Dir.(type) {
	case StrafeLeft, StrafeRight, StrafeBest:
		if s != "-" {
			return fmt.Errorf("strafe dir takes no yaw, got %q", s)
		}
		return nil
	case StrafeYaw, StrafeLine:
		v, err := parseFloat32(s)
		if err != nil {
			return fmt.Errorf("invalid yaw %q", s)
		}
		if _, ok := st.Dir.(StrafeLine); ok {
			st.Dir = StrafeLine{Yaw: v}
		} else {
			st.Dir = StrafeYaw{Yaw: v}
		}
	case StrafePoint:
		xs, ys, ok := strings.Cut(s, " ")
		if !ok {
			return fmt.Errorf("invalid point %q", s)
		}
		x, err := parseFloat32(xs)
		if err != nil {
			return fmt.Errorf("invalid point %q", s)
		}
		y, err := parseFloat32(strings.TrimSpace(ys))
		if err != nil {
			return fmt.Errorf("invalid point %q", s)
		}
		st.Dir = StrafePoint{X: x, Y: y}
	case StrafeLeftRight, StrafeRightLeft:
		c, err := strconv.ParseUint(s, 10, 32)
		if err != nil || c == 0 {
			return fmt.Errorf("invalid count %q", s)
		}
		if _, ok := st.Dir.(StrafeLeftRight); ok {
			st.Dir = StrafeLeftRight{Count: uint32(c)}
		} else {
			st.Dir = StrafeRightLeft{Count: uint32(c)}
		}
	}
	aa.Movement = st
	return nil
}

func parseKeys(s, letters string) ([6]bool, error) {
	var out [6]bool
	if len(s) != len(letters) {
		return out, fmt.Errorf("expected %d characters, got %q", len(letters), s)
	}
	for i := 0; i < len(letters); i++ {
		switch s[i] {
		case '-':
		case letters[i]:
			out[i] = true
		default:
			return out, fmt.Errorf("unexpected %q at position %d", s[i], i)
		}
	}
	return out, nil
}

// target_yaw velocity|velocity_avg|velocity_lock [+-tol] | <yaw> [+-tol] | from <a> to <b>
func parseTargetYaw(rest string) (*VectorialConstraint, error) {
	f := strings.Fields(rest)
	if len(f) == 0 {
		return nil, errors.New("target_yaw: missing argument")
	}
	tol := func(args []string) (float32, error) {
		switch len(args) {
		case 0:
			return 0, nil
		case 1:
			if !strings.HasPrefix(args[0], "+-") {
				return 0, fmt.Errorf("target_yaw: invalid tolerance %q", args[0])
			}
			return parseFloat32(args[0][2:])
		default:
			return 0, errors.New("target_yaw: too many arguments")
		}
	}
	switch f[0] {
	case "velocity", "velocity_avg", "velocity_lock":
		t, err := tol(f[1:])
		if err != nil {
			return nil, err
		}
		switch f[0] {
		case "velocity":
			return &VectorialConstraint{Constraint: VelocityYaw{Tolerance: t}}, nil
		case "velocity_avg":
			return &VectorialConstraint{Constraint: AvgVelocityYaw{Tolerance: t}}, nil
		default:
			return &VectorialConstraint{Constraint: VelocityYawLocking{Tolerance: t}}, nil
		}
	case "from":
		if len(f) != 4 || f[2] != "to" {
			return nil, fmt.Errorf("target_yaw: invalid range %q", rest)
		}
		from, err := parseFloat32(f[1])
		if err != nil {
			return nil, fmt.Errorf("target_yaw: invalid range start %q", f[1])
		}
		to, err := parseFloat32(f[3])
		if err != nil {
			return nil, fmt.Errorf("target_yaw: invalid range end %q", f[3])
		}
		return &VectorialConstraint{Constraint: YawRange{From: from, To: to}}, nil
	}
	yaw, err := parseFloat32(f[0])
	if err != nil {
		return nil, fmt.Errorf("target_yaw: invalid yaw %q", f[0])
	}
	t, err := tol(f[1:])
	if err != nil {
		return nil, err
	}
	return &VectorialConstraint{Constraint: FixedYaw{Yaw: yaw, Tolerance: t}}, nil
}

func parseYawOverride(rest string) (*TargetYawOverride, error) {
	f := strings.Fields(rest)
	if len(f) == 0 {
		return nil, errors.New("target_yaw_override: missing yaws")
	}
	out := &TargetYawOverride{Yaws: make([]float32, 0, len(f))}
	for _, s := range f {
		v, err := parseFloat32(s)
		if err != nil {
			return nil, fmt.Errorf("target_yaw_override: invalid yaw %q", s)
		}
		out.Yaws = append(out.Yaws, v)
	}
	return out, nil
}

// change <target> to <value> over <seconds> s
func parseChange(rest string) (*Change, error) {
	f := strings.Fields(rest)
	if len(f) != 6 || f[1] != "to" || f[3] != "over" || f[5] != "s" {
		return nil, fmt.Errorf("change: invalid syntax %q", rest)
	}
	c := &Change{}
	found := false
	for i, name := range changeTargetNames {
		if name == f[0] {
			c.Target = ChangeTarget(i)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("change: unknown target %q", f[0])
	}
	v, err := parseFloat32(f[2])
	if err != nil {
		return nil, fmt.Errorf("change: invalid value %q", f[2])
	}
	c.FinalValue = v
	over, err := parseFloat32(f[4])
	if err != nil || over < 0 {
		return nil, fmt.Errorf("change: invalid duration %q", f[4])
	}
	c.Over = over
	return c, nil
}

func parseFloat32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
