package cleaners

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hltascleaner/pkg/hltas"
)

func bulk(count uint32) *hltas.FrameBulk {
	return &hltas.FrameBulk{FrameTime: 0.001, FrameCount: count}
}

func bulkWith(count uint32, cmd string) *hltas.FrameBulk {
	fb := bulk(count)
	fb.ConsoleCommand = cmd
	return fb
}

func counts(doc *hltas.Document) []uint32 {
	var out []uint32
	for _, l := range doc.Lines {
		if fb, ok := l.(*hltas.FrameBulk); ok {
			out = append(out, fb.FrameCount)
		}
	}
	return out
}

func totalFrames(doc *hltas.Document) uint64 {
	var n uint64
	for _, c := range counts(doc) {
		n += uint64(c)
	}
	return n
}

func TestMergeTwoIdentical(t *testing.T) {
	doc := &hltas.Document{Lines: []hltas.Line{bulk(1), bulk(1)}}
	rep, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.Equal(t, Report{LinesChanged: []int{0}, LinesRemoved: []int{1}}, rep)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, uint32(2), doc.Lines[0].(*hltas.FrameBulk).FrameCount)
}

func TestMergeRunsAndBreakers(t *testing.T) {
	a := func(n uint32) *hltas.FrameBulk { return bulkWith(n, "a") }
	c := func(n uint32) *hltas.FrameBulk { return bulkWith(n, "c") }
	comment := &hltas.Comment{Text: " note"}
	dir1 := &hltas.Directive{Text: "save x"}
	dir2 := &hltas.Directive{Text: "reset 0"}
	doc := &hltas.Document{Lines: []hltas.Line{
		a(1), a(2), a(3), a(4), a(5), bulkWith(5, "b"), comment, dir1, a(6), dir2, c(50), c(50),
	}}
	before := totalFrames(doc)

	rep, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)

	assert.Equal(t, []uint32{15, 5, 6, 100}, counts(doc))
	assert.Equal(t, before, totalFrames(doc))
	require.Len(t, doc.Lines, 7)
	assert.Same(t, comment, doc.Lines[2])
	assert.Same(t, dir1, doc.Lines[3])
	assert.Same(t, dir2, doc.Lines[5])

	assert.Equal(t, []int{1, 2, 3, 4, 11}, rep.LinesRemoved)
	// 保留行在结果文档中的位置
	assert.Equal(t, []int{0, 6}, rep.LinesChanged)
	assert.Equal(t, "c", doc.Lines[6].(*hltas.FrameBulk).ConsoleCommand)
}

func TestMergeRequiresStrictAdjacency(t *testing.T) {
	doc := &hltas.Document{Lines: []hltas.Line{
		bulk(1), &hltas.Comment{Text: "x"}, bulk(1), bulk(2),
	}}
	rep, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, counts(doc))
	assert.Equal(t, []int{3}, rep.LinesRemoved)
	assert.Equal(t, []int{2}, rep.LinesChanged)
}

func TestMergeComparesFieldsExactly(t *testing.T) {
	yaw := func(y float32, n uint32) *hltas.FrameBulk {
		fb := bulk(n)
		fb.AutoActions.Movement = hltas.SetYaw{Yaw: y}
		return fb
	}
	doc := &hltas.Document{Lines: []hltas.Line{yaw(0, 1), yaw(1, 1)}}
	rep, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.True(t, rep.Empty())
	assert.Len(t, doc.Lines, 2)

	ft := bulk(5)
	ft.FrameTime = 0.010000001
	doc = &hltas.Document{Lines: []hltas.Line{bulk(1), bulk(1), bulk(7), ft, bulk(4), bulk(7)}}
	_, err = MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.Equal(t, []uint32{9, 5, 11}, counts(doc))

	doc = &hltas.Document{Lines: []hltas.Line{bulkWith(1, "a"), bulkWith(2, "a"), bulk(3)}}
	_, err = MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 3}, counts(doc))
}

func TestMergePitchPresence(t *testing.T) {
	p := bulk(1)
	p.Pitch = hltas.Float32(0)
	doc := &hltas.Document{Lines: []hltas.Line{bulk(1), p}}
	rep, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.True(t, rep.Empty())
}

func TestMergeOverflowLeavesDocumentUntouched(t *testing.T) {
	doc := &hltas.Document{Lines: []hltas.Line{
		bulk(3), bulk(3), &hltas.Comment{Text: "x"},
		bulk(math.MaxUint32), bulk(1),
	}}
	snapshot := &hltas.Document{Lines: []hltas.Line{
		bulk(3), bulk(3), &hltas.Comment{Text: "x"},
		bulk(math.MaxUint32), bulk(1),
	}}

	rep, err := MergeDuplicateFrameBulks(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameCountOverflow))
	var oerr *OverflowError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, 3, oerr.RunStart)
	assert.Equal(t, 4, oerr.Index)
	assert.True(t, rep.Empty())
	if diff := cmp.Diff(snapshot, doc); diff != "" {
		t.Fatalf("document modified on overflow (-want +got):\n%s", diff)
	}
}

func TestMergeMaxCountFits(t *testing.T) {
	doc := &hltas.Document{Lines: []hltas.Line{bulk(math.MaxUint32 - 1), bulk(1)}}
	_, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.Equal(t, []uint32{math.MaxUint32}, counts(doc))
}

func TestMergeIdempotent(t *testing.T) {
	doc := &hltas.Document{Lines: []hltas.Line{
		bulk(1), bulk(2), bulkWith(1, "x"), bulkWith(1, "x"), &hltas.Directive{Text: "d"}, bulk(4),
	}}
	_, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	again, err := MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestMergeEmptyAndNil(t *testing.T) {
	rep, err := MergeDuplicateFrameBulks(nil)
	require.NoError(t, err)
	assert.True(t, rep.Empty())

	rep, err = MergeDuplicateFrameBulks(&hltas.Document{})
	require.NoError(t, err)
	assert.True(t, rep.Empty())
}

func TestMergeParsedScript(t *testing.T) {
	doc, err := hltas.ParseString(`version 1
frames
----------|------|------|0.001|-|-|1
----------|------|------|0.001|-|-|1
----------|------|------|0.001|-|-|1|a
----------|------|------|0.001|-|-|2|a
`)
	require.NoError(t, err)
	_, err = MergeDuplicateFrameBulks(doc)
	require.NoError(t, err)
	assert.Equal(t, `version 1
frames
----------|------|------|0.001|-|-|2
----------|------|------|0.001|-|-|3|a
`, doc.String())
}
