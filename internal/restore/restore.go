// Package restore 从 sidecar 元数据恢复媒体文件的拍摄时间。
package restore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/infra/exifx"
	"github.com/phototidy/phototidy/internal/sidecar"
)

// TimestampWriter 把拍摄时间写入文件内嵌元数据（生产实现：exiftool 子进程）。
type TimestampWriter interface {
	WriteCaptureTime(ctx context.Context, path string, ts time.Time) error
}

// readEmbeddedTime 可在测试中替换。
var readEmbeddedTime = exifx.ReadCaptureTime

// Restorer 逐文件恢复拍摄时间。
//
// 行为（硬约束）：
// - sidecar 有时间戳：写 CapturedAt、把文件 mtime/atime 改到拍摄时间，
//   再 best-effort 写穿到内嵌元数据（Writer 为 nil 时跳过）
// - sidecar 缺失或没有时间戳：ExifFallback 开启时改读内嵌 EXIF（仅图片），
//   失败静默，CapturedAt 保持零值
// - 任何单文件失败只记日志，绝不中断整个阶段
type Restorer struct {
	Logger       *slog.Logger
	Writer       TimestampWriter
	ExifFallback bool
}

// Run 按扫描顺序处理所有记录。每处理完一个文件调用一次 onFile（可为 nil）。
// 取消在每次迭代前检查。
func (r *Restorer) Run(ctx context.Context, records []*domain.PhotoRecord, onFile func()) error {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.restoreOne(ctx, rec)
		if onFile != nil {
			onFile()
		}
	}
	return nil
}

func (r *Restorer) restoreOne(ctx context.Context, rec *domain.PhotoRecord) {
	if rec.HasSidecar {
		ts, ok, err := sidecar.CaptureTime(rec.SidecarPath)
		if err != nil {
			r.Logger.Warn("sidecar 解析失败", "path", rec.SidecarPath, "err", err)
		}
		if ok {
			r.apply(ctx, rec, ts)
			return
		}
	}

	if !r.ExifFallback {
		return
	}
	ext := strings.ToLower(filepath.Ext(rec.Path))
	if !domain.IsImageExt(ext) {
		return
	}
	if ts, err := readEmbeddedTime(rec.Path); err == nil && !ts.IsZero() {
		rec.CapturedAt = ts
	}
}

func (r *Restorer) apply(ctx context.Context, rec *domain.PhotoRecord, ts time.Time) {
	rec.CapturedAt = ts

	if err := os.Chtimes(rec.Path, ts, ts); err != nil {
		r.Logger.Warn("修改文件时间失败", "path", rec.Path, "err", err)
	}

	if r.Writer == nil {
		return
	}
	if err := r.Writer.WriteCaptureTime(ctx, rec.Path, ts); err != nil {
		// 写穿是 best-effort：内嵌元数据写不进去不影响后续阶段。
		r.Logger.Warn("内嵌元数据写入失败", "path", rec.Path, "err", err)
	}
}
