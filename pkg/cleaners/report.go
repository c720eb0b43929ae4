// Package cleaners 实现对 hltas.Document 的原地清理 pass：
// 合并重复帧块、删除注释、角度归一化。
//
// 所有 pass 均为同步纯内存变换；同一 Document 不可被两个 pass 并发修改，
// 不同 Document 之间无共享状态，可并行处理。
package cleaners

import (
	"errors"
	"fmt"
)

// Report 描述一次 pass 的结构性修改。
//   - LinesChanged: 被改写的行，索引基于 pass 结束后的文档状态，升序；
//   - LinesRemoved: 被删除的行，索引基于 pass 开始前的文档状态，升序。
type Report struct {
	LinesChanged []int `json:"lines_changed"`
	LinesRemoved []int `json:"lines_removed"`
}

// Empty 报告是否没有任何修改。
func (r Report) Empty() bool { return len(r.LinesChanged) == 0 && len(r.LinesRemoved) == 0 }

var (
	// ErrFrameCountOverflow: 合并后的帧数超出 uint32。
	ErrFrameCountOverflow = errors.New("frame count overflow")
	// ErrNonFiniteAngle: 角度为 NaN 或 ±Inf，无法归一化。
	ErrNonFiniteAngle = errors.New("non-finite angle")
)

// OverflowError 指出溢出的合并段：RunStart 为段首行，Index 为导致溢出的帧块。
type OverflowError struct {
	RunStart int
	Index    int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("merge frame bulks: run starting at line %d overflows at line %d: %v", e.RunStart, e.Index, ErrFrameCountOverflow)
}

func (e *OverflowError) Unwrap() error { return ErrFrameCountOverflow }

// AngleError 指出非有限角度所在的行与字段。
type AngleError struct {
	Index int
	Field string
	Value float32
}

func (e *AngleError) Error() string {
	return fmt.Sprintf("normalize angles: line %d field %s = %v: %v", e.Index, e.Field, e.Value, ErrNonFiniteAngle)
}

func (e *AngleError) Unwrap() error { return ErrNonFiniteAngle }
