package cleaners

import "hltascleaner/pkg/hltas"

// RemoveComments 删除所有注释行，返回其原始索引（升序）。其他行不读不改。
func RemoveComments(doc *hltas.Document) Report {
	var rep Report
	if doc == nil {
		return rep
	}
	for i, l := range doc.Lines {
		if _, ok := l.(*hltas.Comment); ok {
			rep.LinesRemoved = append(rep.LinesRemoved, i)
		}
	}
	// 自高向低删除，已记录的低位索引保持有效
	for k := len(rep.LinesRemoved) - 1; k >= 0; k-- {
		doc.RemoveLine(rep.LinesRemoved[k])
	}
	return rep
}
