package cleaners

import (
	"fmt"
	"math"
	"sort"

	"hltascleaner/pkg/hltas"
)

// run: 一段连续可合并帧块的累加器。members[0] 为保留行。
type run struct {
	total   uint64
	members []int
}

// MergeDuplicateFrameBulks 将相邻且除帧数外完全相同的帧块合并为一行，帧数求和。
//
// 相邻指中间没有任何其他行；注释、指令等非帧块行都会打断合并。
// 合并段按原始索引从高到低落地，因此 LinesRemoved 中的索引即原始索引；
// LinesChanged 给出保留行在合并完成后的位置。
//
// 帧数累加超出 uint32 时返回 *OverflowError，此时文档尚未被修改。
func MergeDuplicateFrameBulks(doc *hltas.Document) (Report, error) {
	var rep Report
	if doc == nil || len(doc.Lines) == 0 {
		return rep, nil
	}

	var (
		runs []run
		cur  = -1
		prev *hltas.FrameBulk
	)
	for i, l := range doc.Lines {
		switch v := l.(type) {
		case *hltas.FrameBulk:
			if prev == nil || !prev.SameSettings(v) {
				cur = -1
				prev = v
				continue
			}
			if cur < 0 {
				runs = append(runs, run{total: uint64(prev.FrameCount), members: []int{i - 1}})
				cur = len(runs) - 1
			}
			r := &runs[cur]
			r.total += uint64(v.FrameCount)
			if r.total > math.MaxUint32 {
				return Report{}, &OverflowError{RunStart: r.members[0], Index: i}
			}
			r.members = append(r.members, i)
			prev = v
		case *hltas.Comment, *hltas.VectorialConstraint, *hltas.Change, *hltas.TargetYawOverride, *hltas.Directive:
			cur = -1
			prev = nil
		default:
			panic(fmt.Sprintf("cleaners: unhandled line type %T", l))
		}
	}
	if len(runs) == 0 {
		return rep, nil
	}

	survivors := make([]int, 0, len(runs))
	for k := len(runs) - 1; k >= 0; k-- {
		r := runs[k]
		first := r.members[0]
		doc.Lines[first].(*hltas.FrameBulk).FrameCount = uint32(r.total)
		survivors = append(survivors, first)
		for j := len(r.members) - 1; j >= 1; j-- {
			doc.RemoveLine(r.members[j])
			rep.LinesRemoved = append(rep.LinesRemoved, r.members[j])
		}
	}
	sort.Ints(survivors)
	sort.Ints(rep.LinesRemoved)

	// 保留行的最终位置 = 原始位置 - 其前方被删除的行数
	rep.LinesChanged = make([]int, len(survivors))
	for k, s := range survivors {
		rep.LinesChanged[k] = s - sort.SearchInts(rep.LinesRemoved, s)
	}
	return rep, nil
}
