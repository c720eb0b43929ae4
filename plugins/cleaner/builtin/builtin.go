// Package builtin 将 pkg/cleaners 的三个 pass 适配为 contract.Cleaner。
package builtin

import (
	"context"

	"hltascleaner/pkg/cleaners"
	"hltascleaner/pkg/contract"
	"hltascleaner/pkg/hltas"
)

// 注册名。
const (
	MergeFrameBulks = "merge_frame_bulks"
	RemoveComments  = "remove_comments"
	NormalizeAngles = "normalize_angles"
)

type merge struct{}

// NewMerge 返回合并重复帧块的 Cleaner。
func NewMerge() contract.Cleaner { return merge{} }

func (merge) Name() string { return MergeFrameBulks }

func (merge) Clean(ctx context.Context, doc *hltas.Document) (cleaners.Report, error) {
	if err := ctx.Err(); err != nil {
		return cleaners.Report{}, err
	}
	return cleaners.MergeDuplicateFrameBulks(doc)
}

type comments struct{}

// NewRemoveComments 返回删除注释行的 Cleaner。
func NewRemoveComments() contract.Cleaner { return comments{} }

func (comments) Name() string { return RemoveComments }

func (comments) Clean(ctx context.Context, doc *hltas.Document) (cleaners.Report, error) {
	if err := ctx.Err(); err != nil {
		return cleaners.Report{}, err
	}
	return cleaners.RemoveComments(doc), nil
}

type angles struct{}

// NewNormalizeAngles 返回角度归一化 Cleaner；该 pass 不产生行级报告。
func NewNormalizeAngles() contract.Cleaner { return angles{} }

func (angles) Name() string { return NormalizeAngles }

func (angles) Clean(ctx context.Context, doc *hltas.Document) (cleaners.Report, error) {
	if err := ctx.Err(); err != nil {
		return cleaners.Report{}, err
	}
	return cleaners.Report{}, cleaners.NormalizeAngles(doc)
}
