package domain

// Issue 的四种类别。类别字符串同时用于 report JSON 与 review 目录映射，
// 一旦发布不可改名。
const (
	CategoryTooSmall      = "too_small"
	CategoryBlurOrCorrupt = "blur_or_corrupt"
	CategoryBurst         = "burst"
	CategoryDuplicate     = "duplicate"
)

// Issue 是一组被标记待人工确认的文件。
//
// 约束：
// - Files 中的每个记录必须同时存在于本次 run 的记录集合中
// - Issue 只读取记录的身份字段（Path 等），不修改它们
// - RecommendedKeep 若非空，必须是 Files 的成员
type Issue struct {
	Category string
	Files    []*PhotoRecord

	// RecommendedKeep 是建议保留的一张（质量评分最高者）；
	// too_small/blur_or_corrupt 这类单文件 Issue 可以为 nil。
	RecommendedKeep *PhotoRecord

	// GroupID 用作 review 目录下的分组文件夹名。
	// duplicate 取内容哈希前缀（重复 run 稳定）；其余类别为生成 ID。
	GroupID string

	Description string
}

// Contains 判断 path 是否属于该 Issue 的成员。
func (is *Issue) Contains(path string) bool {
	for _, f := range is.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// IsKeeper 判断 path 是否为该 Issue 的建议保留项。
func (is *Issue) IsKeeper(path string) bool {
	return is.RecommendedKeep != nil && is.RecommendedKeep.Path == path
}
