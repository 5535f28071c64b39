package domain

import (
	"sort"
	"time"
)

// Stats 是一次 run 的聚合计数。
// 写入约束：每个计数器由拥有它的阶段在单一收集路径上更新，
// 阶段之间靠串行屏障隔离，不存在并发读写。
type Stats struct {
	TotalProcessed    int `json:"total_processed"`
	ArchivesExtracted int `json:"archives_extracted"`
	DuplicatesFound   int `json:"duplicates_found"`
	BlurryFound       int `json:"blurry_found"`
	CorruptedFound    int `json:"corrupted_found"`
	BurstsFound       int `json:"bursts_found"`
	TooSmallFound     int `json:"too_small_found"`
	MovedToLibrary    int `json:"moved_to_library"`
}

// IssueResult 是 Issue 在 report JSON 中的对外稳定形态
// （内部 Issue 持有记录指针，不适合直接序列化）。
type IssueResult struct {
	Category        string   `json:"category"`
	GroupID         string   `json:"group_id"`
	Description     string   `json:"description"`
	Files           []string `json:"files"`
	RecommendedKeep string   `json:"recommended_keep"`
}

// RunReport 是对外稳定输出（logs/report.json / stdout JSON）的结构。
type RunReport struct {
	Path      string `json:"path"`
	Cancelled bool   `json:"cancelled"`

	// Error 非空表示 run 因阶段失败而中止（阶段名 + 原因）；
	// 此时 Stats/Issues 只包含中止前已累积的部分结果。
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stats  Stats         `json:"stats"`
	Issues []IssueResult `json:"issues"`
}

// NewIssueResult 把内部 Issue 转为对外形态（文件顺序保持不变）。
func NewIssueResult(is Issue) IssueResult {
	out := IssueResult{
		Category:    is.Category,
		GroupID:     is.GroupID,
		Description: is.Description,
		Files:       make([]string, 0, len(is.Files)),
	}
	for _, f := range is.Files {
		out.Files = append(out.Files, f.Path)
	}
	if is.RecommendedKeep != nil {
		out.RecommendedKeep = is.RecommendedKeep.Path
	}
	return out
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) issues 稳定排序：按 category、group_id、首个文件路径字典序
//
// 并行阶段的结果落地顺序不确定，排序后输出才可复现（也便于测试）。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		af, bf := "", ""
		if len(a.Files) > 0 {
			af = a.Files[0]
		}
		if len(b.Files) > 0 {
			bf = b.Files[0]
		}
		return af < bf
	})
}
