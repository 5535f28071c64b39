package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/organize"
	"github.com/phototidy/phototidy/internal/takeout"
)

// Roots 返回 base 下实际存在的扫描根目录。
// 两个候选：<base>/Photos & Videos 与 <base>/GoogleTakeout。
func Roots(base string) []string {
	base = filepath.Clean(base)
	candidates := []string{
		filepath.Join(base, organize.LibraryDirName),
		filepath.Join(base, takeout.DropDirName),
	}
	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}

// Scan 扫描 base 下的媒体文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：<base>/GoogleTakeout/archives/（已归档的 zip 不参与扫描）
// - excludeDirs：来自配置文件，均视为相对 base 的路径（若是绝对路径，则按绝对路径处理）
// - 只收录已知媒体扩展名；伴生 sidecar 为同目录下的 <文件名>.json
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
// 不可读目录记 warning 后跳过，不中断整次扫描。
func Scan(logger *slog.Logger, base string, excludeDirs []string) ([]*domain.PhotoRecord, error) {
	base = filepath.Clean(base)
	excluded := buildExcluded(base, excludeDirs)

	records := make([]*domain.PhotoRecord, 0, 128)
	for _, root := range Roots(base) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				logger.Warn("目录不可读，跳过", "path", path, "err", walkErr)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
			if isExcluded(path, excluded) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(d.Name()))
			if !domain.IsMediaExt(ext) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				logger.Warn("文件 stat 失败，跳过", "path", path, "err", err)
				return nil
			}

			rec := &domain.PhotoRecord{
				Path:      path,
				SizeBytes: info.Size(),
			}
			if sc := path + ".json"; fileExists(sc) {
				rec.HasSidecar = true
				rec.SidecarPath = sc
			}
			records = append(records, rec)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func buildExcluded(base string, excludeDirs []string) []string {
	archivesDir := filepath.Join(base, takeout.DropDirName, takeout.ArchivesDirName)

	excluded := make([]string, 0, 1+len(excludeDirs))
	excluded = append(excluded, filepath.Clean(archivesDir))

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 base。
		excluded = append(excluded, filepath.Clean(filepath.Join(base, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, dir := range excluded {
		if isUnder(path, dir) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
