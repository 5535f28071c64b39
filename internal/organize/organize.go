// Package organize 决定每条记录的最终去向：按日期入库，或复制进
// 待人工确认的分类暂存区。
package organize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/infra/fsx"
)

// 目录契约（对外稳定，review 流程依赖这些名字）。
const (
	LibraryDirName = "Photos & Videos"
	UnknownDateDir = "Unknown Date"
	ReviewRootName = "Pics Waiting for Approval"
)

var categoryDirs = map[string]string{
	domain.CategoryTooSmall:      "NEEDS ATTENTION - Too Small",
	domain.CategoryBlurOrCorrupt: "NEEDS ATTENTION - Blurry or Corrupt",
	domain.CategoryBurst:         "NEEDS ATTENTION - Burst Photos",
	domain.CategoryDuplicate:     "NEEDS ATTENTION - Duplicates",
}

// CategoryDir 返回类别对应的暂存区目录名。
func CategoryDir(category string) string {
	return categoryDirs[category]
}

// Bucket 返回记录在媒体库里的日期分桶目录名。
func Bucket(capturedAt time.Time) string {
	if capturedAt.IsZero() {
		return UnknownDateDir
	}
	return capturedAt.Format("2006-01")
}

// Organizer 执行入库移动与暂存复制。
//
// 约束：
// - 被标记的非保留成员：复制（不是移动）进 <暂存区>/<类别>/<GroupID>/，
//   sidecar 随行，目标重名加递增后缀
// - 其余记录（未被标记，或是组内建议保留项）：移动进
//   <媒体库>/<YYYY-MM>/ 或 Unknown Date/，同样的 sidecar 与重名规则
// - 已经位于目标目录内的记录原样不动（幂等）
// - 单文件失败记日志后继续，绝不中断剩余记录
type Organizer struct {
	Logger *slog.Logger
	Base   string
}

// Run 按顺序处理：先暂存复制，再入库移动。返回实际移动进媒体库的文件数。
// 取消在每次迭代前检查。
func (o *Organizer) Run(ctx context.Context, records []*domain.PhotoRecord, issues []domain.Issue, onFile func()) (int, error) {
	needsReview := make(map[string]bool)
	for i := range issues {
		is := &issues[i]
		for _, rec := range is.Files {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if is.IsKeeper(rec.Path) {
				continue
			}
			needsReview[rec.Path] = true
			o.copyToReview(rec, is)
		}
	}

	moved := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		if !needsReview[rec.Path] && o.placeInLibrary(rec) {
			moved++
		}
		if onFile != nil {
			onFile()
		}
	}
	return moved, nil
}

func (o *Organizer) copyToReview(rec *domain.PhotoRecord, is *domain.Issue) {
	dir := filepath.Join(o.Base, ReviewRootName, CategoryDir(is.Category), is.GroupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		o.Logger.Warn("创建暂存目录失败", "dir", dir, "err", err)
		return
	}

	name, err := fsx.AllocUniqueName(dir, filepath.Base(rec.Path))
	if err != nil {
		o.Logger.Warn("分配暂存文件名失败", "path", rec.Path, "err", err)
		return
	}
	if err := fsx.CopyFile(rec.Path, filepath.Join(dir, name)); err != nil {
		o.Logger.Warn("复制到暂存区失败", "path", rec.Path, "err", err)
		return
	}
	if rec.HasSidecar {
		if err := fsx.CopyFile(rec.SidecarPath, filepath.Join(dir, name+".json")); err != nil {
			o.Logger.Warn("复制 sidecar 失败", "path", rec.SidecarPath, "err", err)
		}
	}
}

// placeInLibrary 把记录移动到日期分桶，返回是否实际发生了移动。
func (o *Organizer) placeInLibrary(rec *domain.PhotoRecord) bool {
	destDir := filepath.Join(o.Base, LibraryDirName, Bucket(rec.CapturedAt))
	if filepath.Dir(rec.Path) == destDir {
		return false
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		o.Logger.Warn("创建媒体库目录失败", "dir", destDir, "err", err)
		return false
	}

	name, err := fsx.AllocUniqueName(destDir, filepath.Base(rec.Path))
	if err != nil {
		o.Logger.Warn("分配入库文件名失败", "path", rec.Path, "err", err)
		return false
	}
	if err := fsx.MoveFile(rec.Path, filepath.Join(destDir, name)); err != nil {
		o.Logger.Warn("移动入库失败", "path", rec.Path, "err", err)
		return false
	}
	if rec.HasSidecar {
		if err := fsx.MoveFile(rec.SidecarPath, filepath.Join(destDir, name+".json")); err != nil {
			o.Logger.Warn("移动 sidecar 失败", "path", rec.SidecarPath, "err", err)
		}
	}
	return true
}
