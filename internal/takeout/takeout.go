// Package takeout 解压投放区里的导出压缩包。
package takeout

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phototidy/phototidy/internal/infra/fsx"
)

// DropDirName 是压缩包投放区；ArchivesDirName 存放已处理完的压缩包。
const (
	DropDirName     = "GoogleTakeout"
	ArchivesDirName = "archives"
)

// Extract 把 <base>/GoogleTakeout/*.zip 逐个解压到 <投放区>/<包名>/，
// 解压成功后把压缩包挪进 archives/。
//
// - 单个压缩包失败：记日志跳过，不影响其余
// - 投放区不存在：不算错误，返回 0
// - 取消在每个压缩包之间检查
//
// 返回成功解压的压缩包数。
func Extract(ctx context.Context, logger *slog.Logger, base string) (int, error) {
	dropDir := filepath.Join(base, DropDirName)
	entries, err := os.ReadDir(dropDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}

		zipPath := filepath.Join(dropDir, e.Name())
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := extractOne(zipPath, filepath.Join(dropDir, stem)); err != nil {
			logger.Warn("解压失败，跳过", "zip", zipPath, "err", err)
			continue
		}
		archive(logger, dropDir, e.Name())
		count++
	}
	return count, nil
}

// archive 把处理完的压缩包挪进 archives/（失败只记日志：
// 压缩包留在原地会被下一次 run 重复解压，但不破坏数据）。
func archive(logger *slog.Logger, dropDir, name string) {
	dir := filepath.Join(dropDir, ArchivesDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("创建 archives 目录失败", "dir", dir, "err", err)
		return
	}
	dstName, err := fsx.AllocUniqueName(dir, name)
	if err != nil {
		logger.Warn("分配归档文件名失败", "zip", name, "err", err)
		return
	}
	if err := fsx.MoveFile(filepath.Join(dropDir, name), filepath.Join(dir, dstName)); err != nil {
		logger.Warn("归档压缩包失败", "zip", name, "err", err)
	}
}

func extractOne(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	cleanDest := filepath.Clean(destDir)
	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		// zip-slip 防护：任何条目不得落到目标目录之外。
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(filepath.Separator)) {
			return fmt.Errorf("压缩包条目越界：%q", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// 条目里的修改时间尽量保留（sidecar 缺失时它是最后的日期线索）。
	if mt := f.Modified; !mt.IsZero() {
		_ = os.Chtimes(target, mt, mt)
	}
	return nil
}
