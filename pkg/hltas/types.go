// Package hltas 提供 HLTAS 脚本的类型化文档模型与文本编解码。
//
// 文档由头部属性（version 之后、frames 之前）与有序的 Line 序列组成。
// Line 为封闭的和类型：仅本包内的类型可以实现，新增变体时各清理 pass
// 的类型分支会落入 default 并 panic，从而暴露遗漏。
package hltas

// Document: 已解析的脚本。Lines 的顺序即时间顺序。
type Document struct {
	Properties []Property
	Lines      []Line
}

// Property: 头部属性行（如 demo/save/seeds/frametime0ms），原样保留。
type Property struct {
	Key   string
	Value string
}

// Line: frames 段内的一行。
type Line interface {
	line()
}

// RemoveLine 删除索引 i 处的行，后续行前移一位。
func (d *Document) RemoveLine(i int) {
	copy(d.Lines[i:], d.Lines[i+1:])
	d.Lines[len(d.Lines)-1] = nil
	d.Lines = d.Lines[:len(d.Lines)-1]
}

// FrameBulk: 若干帧完全相同的输入设置。FrameCount 恒为正。
type FrameBulk struct {
	AutoActions    AutoActions
	MovementKeys   MovementKeys
	ActionKeys     ActionKeys
	FrameTime      float64
	Pitch          *float32
	FrameCount     uint32
	ConsoleCommand string
}

// Comment: `//` 开头的注释行，Text 不含前缀。
type Comment struct {
	Text string
}

// VectorialConstraint: `target_yaw ...` 指令。
type VectorialConstraint struct {
	Constraint Constraint
}

// Change: `change <target> to <value> over <seconds> s` 指令。
type Change struct {
	Target     ChangeTarget
	FinalValue float32
	Over       float32
}

// TargetYawOverride: `target_yaw_override <yaw>...` 指令。
type TargetYawOverride struct {
	Yaws []float32
}

// Directive: 其余所有行（save/seeds/reset/strafing/buttons 等），对清理 pass 不透明。
type Directive struct {
	Text string
}

func (*FrameBulk) line()           {}
func (*Comment) line()             {}
func (*VectorialConstraint) line() {}
func (*Change) line()              {}
func (*TargetYawOverride) line()   {}
func (*Directive) line()           {}

// Toggle: 自动动作的三态开关。文本中 '-' 为关，小写为开，大写为仅限首帧。
type Toggle uint8

const (
	Off Toggle = iota
	On
	Limited
)

// AutoActions: 帧块第一列（10 字符）。
type AutoActions struct {
	// Movement: nil | SetYaw | Strafe
	Movement            AutoMovement
	LeaveGround         Toggle
	Autojump            Toggle
	Ducktap             Toggle
	Jumpbug             Toggle
	DuckBeforeCollision Toggle
	DuckBeforeGround    Toggle
	DuckWhenJump        Toggle
}

// AutoMovement: 视角/扫射设置的和类型。
type AutoMovement interface {
	autoMovement()
}

// SetYaw: 无扫射时直接设置 yaw。
type SetYaw struct {
	Yaw float32
}

// Strafe: 扫射类型与方向。
type Strafe struct {
	Type StrafeType
	Dir  StrafeDir
}

func (SetYaw) autoMovement() {}
func (Strafe) autoMovement() {}

// StrafeType 对应 `s<type><dir>` 中的 type 数字。
type StrafeType uint8

const (
	MaxAccel StrafeType = iota
	MaxAngle
	MaxDeccel
	ConstSpeed
)

// StrafeDir: 扫射方向的和类型。
type StrafeDir interface {
	strafeDir()
}

type (
	StrafeLeft  struct{}
	StrafeRight struct{}
	StrafeBest  struct{}
	StrafeYaw   struct{ Yaw float32 }
	StrafePoint struct{ X, Y float32 }
	StrafeLine  struct{ Yaw float32 }
	// StrafeLeftRight / StrafeRightLeft: 每 Count 帧交替方向。
	StrafeLeftRight struct{ Count uint32 }
	StrafeRightLeft struct{ Count uint32 }
)

func (StrafeLeft) strafeDir()      {}
func (StrafeRight) strafeDir()     {}
func (StrafeBest) strafeDir()      {}
func (StrafeYaw) strafeDir()       {}
func (StrafePoint) strafeDir()     {}
func (StrafeLine) strafeDir()      {}
func (StrafeLeftRight) strafeDir() {}
func (StrafeRightLeft) strafeDir() {}

// MovementKeys: 第二列 `flrbud`。
type MovementKeys struct {
	Forward, Left, Right, Back, Up, Down bool
}

// ActionKeys: 第三列 `jdu12r`。
type ActionKeys struct {
	Jump, Duck, Use, Attack1, Attack2, Reload bool
}

// Constraint: target_yaw 约束的和类型。
type Constraint interface {
	constraint()
}

type (
	VelocityYaw        struct{ Tolerance float32 }
	AvgVelocityYaw     struct{ Tolerance float32 }
	VelocityYawLocking struct{ Tolerance float32 }
	FixedYaw           struct{ Yaw, Tolerance float32 }
	YawRange           struct{ From, To float32 }
)

func (VelocityYaw) constraint()        {}
func (AvgVelocityYaw) constraint()     {}
func (VelocityYawLocking) constraint() {}
func (FixedYaw) constraint()           {}
func (YawRange) constraint()           {}

// ChangeTarget: change 指令作用的量。
type ChangeTarget uint8

const (
	ChangeYaw ChangeTarget = iota
	ChangePitch
	ChangeTargetYaw
	ChangeTargetYawOffset
)

var changeTargetNames = [...]string{
	ChangeYaw:             "yaw",
	ChangePitch:           "pitch",
	ChangeTargetYaw:       "target_yaw",
	ChangeTargetYawOffset: "target_yaw_offset",
}

func (t ChangeTarget) String() string {
	if int(t) < len(changeTargetNames) {
		return changeTargetNames[t]
	}
	return "yaw"
}

// SameSettings 报告两个帧块除 FrameCount 外是否逐字段相等（浮点严格相等，无容差）。
func (b *FrameBulk) SameSettings(o *FrameBulk) bool {
	if b.AutoActions != o.AutoActions ||
		b.MovementKeys != o.MovementKeys ||
		b.ActionKeys != o.ActionKeys ||
		b.FrameTime != o.FrameTime ||
		b.ConsoleCommand != o.ConsoleCommand {
		return false
	}
	switch {
	case b.Pitch == nil && o.Pitch == nil:
		return true
	case b.Pitch == nil || o.Pitch == nil:
		return false
	default:
		return *b.Pitch == *o.Pitch
	}
}

// Float32 返回 v 的指针，便于构造可选的 Pitch。
func Float32(v float32) *float32 { return &v }
