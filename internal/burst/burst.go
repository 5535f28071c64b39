// Package burst 按拍摄时间窗口识别连拍序列。
package burst

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/quality"
)

// Window 是相邻两张的最大间隔：超过即断链。
// 边界语义：恰好等于窗口仍属同一连拍。
const Window = 10 * time.Second

// Group 识别连拍组。
//
// 约束：
// - 只看有拍摄时间且未损坏的记录
// - 按 CapturedAt 升序稳定排序后找链：相邻间隔 ≤ 窗口即同组，
//   链式传递（A-B、B-C 各自在窗口内则 A、B、C 同组，即使 A-C 超窗）
// - 组内不足 2 张的静默丢弃
// - 建议保留项用共享评分选出
func Group(records []*domain.PhotoRecord) []domain.Issue {
	dated := make([]*domain.PhotoRecord, 0, len(records))
	for _, rec := range records {
		if rec.CapturedAt.IsZero() || rec.IsCorrupted {
			continue
		}
		dated = append(dated, rec)
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].CapturedAt.Before(dated[j].CapturedAt)
	})

	issues := make([]domain.Issue, 0, 4)
	for i := 0; i < len(dated); {
		j := i + 1
		for j < len(dated) && dated[j].CapturedAt.Sub(dated[j-1].CapturedAt) <= Window {
			j++
		}
		if j-i >= 2 {
			group := dated[i:j:j]
			issues = append(issues, domain.Issue{
				Category:        domain.CategoryBurst,
				Files:           group,
				RecommendedKeep: quality.SelectBest(group),
				GroupID:         uuid.NewString()[:8],
				Description:     fmt.Sprintf("%d 张连拍（%s）", len(group), group[0].CapturedAt.Format("2006-01-02 15:04:05")),
			})
		}
		i = j
	}
	return issues
}
