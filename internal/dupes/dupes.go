// Package dupes 按内容哈希对记录做精确重复分组。
package dupes

import (
	"fmt"
	"sort"

	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/quality"
)

// Detect 把哈希相同的记录归入同一个 duplicate Issue。
//
// 约束：
// - 空哈希（不可读文件）不参与分组
// - GroupID 取哈希前 8 位：同一批重复文件在任意两次 run 中得到相同 ID
// - 组内成员保持扫描顺序；组间按 GroupID 排序（输出可复现）
// - 建议保留项用共享评分选出
//
// 返回 Issue 列表与重复文件数（每组 len-1，保留的那张不计）。
func Detect(records []*domain.PhotoRecord) ([]domain.Issue, int) {
	byHash := make(map[string][]*domain.PhotoRecord)
	order := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ContentHash == "" {
			continue
		}
		if _, seen := byHash[rec.ContentHash]; !seen {
			order = append(order, rec.ContentHash)
		}
		byHash[rec.ContentHash] = append(byHash[rec.ContentHash], rec)
	}

	issues := make([]domain.Issue, 0, 4)
	found := 0
	for _, hash := range order {
		group := byHash[hash]
		if len(group) < 2 {
			continue
		}
		issues = append(issues, domain.Issue{
			Category:        domain.CategoryDuplicate,
			Files:           group,
			RecommendedKeep: quality.SelectBest(group),
			GroupID:         hash[:8],
			Description:     fmt.Sprintf("%d 个文件内容完全相同", len(group)),
		})
		found += len(group) - 1
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].GroupID < issues[j].GroupID })
	return issues, found
}
