// Package pipeline 按固定顺序驱动各处理阶段，并向 Observer 发布进度。
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phototidy/phototidy/internal/burst"
	"github.com/phototidy/phototidy/internal/config"
	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/dupes"
	"github.com/phototidy/phototidy/internal/hashx"
	"github.com/phototidy/phototidy/internal/infra/exifx"
	"github.com/phototidy/phototidy/internal/infra/fsx"
	"github.com/phototidy/phototidy/internal/infra/imgx"
	"github.com/phototidy/phototidy/internal/organize"
	"github.com/phototidy/phototidy/internal/quality"
	"github.com/phototidy/phototidy/internal/restore"
	"github.com/phototidy/phototidy/internal/scan"
	"github.com/phototidy/phototidy/internal/takeout"
)

// 九个固定阶段。阶段之间是严格的串行屏障：上一阶段完全排空才进入下一阶段。
const totalSteps = 9

// Execute 执行一次完整 run，返回对外稳定的 RunReport。
// 单文件失败在各阶段内部消化（日志 + 跳过），不会让整个 run 失败。
func Execute(ctx context.Context, logger *slog.Logger, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, logger, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息
//（由上层决定是否启用；nil 等价于 Execute）。
func ExecuteWithObserver(ctx context.Context, logger *slog.Logger, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		StartedAt: started,
		Issues:    []domain.IssueResult{},
	}
	issues := make([]domain.Issue, 0, 16)
	p := &progress{obs: obs}

	// 1/9 初始化目录结构
	p.start("setup", 1, 0)
	if err := setupDirs(eff.Path); err != nil {
		return finish(logger, eff, &rr, issues, fmt.Sprintf("setup 失败：%v", err))
	}
	p.finish(nil)

	// 2/9 解压投放区压缩包
	p.start("extract", 2, 0)
	extracted, err := takeout.Extract(ctx, logger, eff.Path)
	rr.Stats.ArchivesExtracted = extracted
	if cancelled(ctx, &rr) {
		return finish(logger, eff, &rr, issues, "")
	}
	if err != nil {
		return finish(logger, eff, &rr, issues, fmt.Sprintf("extract 失败：%v", err))
	}
	p.finish(map[string]any{"archives": extracted})

	// 3/9 扫描媒体文件
	p.start("scan", 3, 0)
	records, err := scan.Scan(logger, eff.Path, eff.ExcludeDirs)
	if err != nil {
		return finish(logger, eff, &rr, issues, fmt.Sprintf("scan 失败：%v", err))
	}
	rr.Stats.TotalProcessed = len(records)
	p.finish(map[string]any{"files": len(records)})

	// 外部能力装配：exiftool 缺席时退化为纯 Go 能力。
	writer, prober := capabilities(logger, eff.ExifTool)

	// 4/9 恢复拍摄时间
	p.start("restore", 4, len(records))
	rst := &restore.Restorer{Logger: logger, Writer: writer, ExifFallback: eff.ExifFallback}
	if err := rst.Run(ctx, records, p.fileDone); err != nil {
		rr.Cancelled = true
		return finish(logger, eff, &rr, issues, "")
	}
	p.finish(nil)

	// 5/9 内容指纹
	p.start("hash", 5, len(records))
	h := &hashx.Hasher{Logger: logger, Workers: eff.Workers}
	if err := h.Run(ctx, records, p.fileDone); err != nil {
		rr.Cancelled = true
		return finish(logger, eff, &rr, issues, "")
	}
	p.finish(map[string]any{"workers": eff.Workers})

	// 6/9 重复分组
	p.start("duplicates", 6, 0)
	dupIssues, dupCount := dupes.Detect(records)
	issues = append(issues, dupIssues...)
	rr.Stats.DuplicatesFound = dupCount
	if cancelled(ctx, &rr) {
		return finish(logger, eff, &rr, issues, "")
	}
	p.finish(map[string]any{"groups": len(dupIssues), "duplicates": dupCount})

	// 7/9 质量评估
	p.start("quality", 7, len(records))
	a := &quality.Assessor{Logger: logger, Workers: eff.Workers, Prober: prober, Scorer: imgScorer{}}
	qIssues, err := a.Run(ctx, records, p.fileDone)
	if err != nil {
		rr.Cancelled = true
		return finish(logger, eff, &rr, issues, "")
	}
	issues = append(issues, qIssues...)
	countQuality(&rr.Stats, qIssues)
	p.finish(map[string]any{
		"too_small": rr.Stats.TooSmallFound,
		"blurry":    rr.Stats.BlurryFound,
		"corrupted": rr.Stats.CorruptedFound,
	})

	// 8/9 连拍分组
	p.start("bursts", 8, 0)
	burstIssues := burst.Group(records)
	issues = append(issues, burstIssues...)
	rr.Stats.BurstsFound = len(burstIssues)
	if cancelled(ctx, &rr) {
		return finish(logger, eff, &rr, issues, "")
	}
	p.finish(map[string]any{"bursts": len(burstIssues)})

	// 9/9 归档入库
	p.start("organize", 9, len(records))
	org := &organize.Organizer{Logger: logger, Base: eff.Path}
	moved, err := org.Run(ctx, records, issues, p.fileDone)
	rr.Stats.MovedToLibrary = moved
	if err != nil {
		rr.Cancelled = true
		return finish(logger, eff, &rr, issues, "")
	}
	p.finish(map[string]any{"moved": moved})

	return finish(logger, eff, &rr, issues, "")
}

// capabilities 装配时间写穿与尺寸探测能力。
// exiftool 可用时优先用它探测尺寸（覆盖 HEIC/视频等纯 Go 解不开的格式），
// 失败再回退纯 Go 解码。
func capabilities(logger *slog.Logger, explicit string) (restore.TimestampWriter, quality.DimensionProber) {
	tool, ok := exifx.Find(explicit)
	if !ok {
		logger.Info("未找到 exiftool，退化为纯 Go 能力")
		return nil, quality.Chain{imgProber{}}
	}
	logger.Info("使用 exiftool", "path", tool.Path)
	return tool, quality.Chain{tool, imgProber{}}
}

func countQuality(stats *domain.Stats, issues []domain.Issue) {
	for i := range issues {
		is := &issues[i]
		switch is.Category {
		case domain.CategoryTooSmall:
			stats.TooSmallFound++
		case domain.CategoryBlurOrCorrupt:
			if len(is.Files) > 0 && is.Files[0].IsCorrupted {
				stats.CorruptedFound++
			} else {
				stats.BlurryFound++
			}
		}
	}
}

func cancelled(ctx context.Context, rr *domain.RunReport) bool {
	if ctx.Err() == nil {
		return false
	}
	rr.Cancelled = true
	return true
}

// finish 收尾：记录结束时间、转换 Issue、排序、落盘 report.json。
// errMsg 非空表示 run 因阶段失败而中止。
func finish(logger *slog.Logger, eff config.EffectiveConfig, rr *domain.RunReport, issues []domain.Issue, errMsg string) domain.RunReport {
	rr.Error = errMsg
	rr.FinishedAt = time.Now().UTC()
	for _, is := range issues {
		rr.Issues = append(rr.Issues, domain.NewIssueResult(is))
	}
	rr.Finalize()

	if errMsg != "" {
		logger.Error("run 中止", "err", errMsg)
	}
	writeReport(logger, eff.Path, *rr)
	return *rr
}

// writeReport 把报告原子写入 <base>/logs/report.json（失败只记日志：
// stdout/调用方仍然拿得到完整报告）。
func writeReport(logger *slog.Logger, base string, rr domain.RunReport) {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		logger.Warn("报告序列化失败", "err", err)
		return
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Join(base, "logs"), "report.json", b); err != nil {
		logger.Warn("报告写入失败", "err", err)
	}
}

func setupDirs(base string) error {
	dirs := []string{
		filepath.Join(base, organize.LibraryDirName),
		filepath.Join(base, organize.ReviewRootName),
		filepath.Join(base, takeout.DropDirName),
		filepath.Join(base, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// imgProber/imgScorer 把纯 Go 图像能力适配到 quality 的接口上。
// imgx 不认识的格式（视频、HEIC 等）翻译成 quality 的“无从评估”语义。
type imgProber struct{}

func (imgProber) ProbeDimensions(_ context.Context, path string) (int, int, error) {
	w, h, err := imgx.ProbeConfig(path)
	if errors.Is(err, imgx.ErrUnsupported) {
		return 0, 0, fmt.Errorf("%w：%v", quality.ErrUnsupportedFormat, err)
	}
	return w, h, err
}

type imgScorer struct{}

func (imgScorer) SharpnessScore(path string) (float64, error) {
	return imgx.SharpnessScore(path)
}

// progress 跟踪当前阶段并向 Observer 发快照。
// 只在 Orchestrator 的收集路径上使用，不做并发防护。
type progress struct {
	obs     Observer
	name    string
	num     int
	total   int
	done    int
	started time.Time
}

func (p *progress) start(name string, num, totalFiles int) {
	p.name, p.num, p.total, p.done = name, num, totalFiles, 0
	p.started = time.Now()
	if p.obs != nil {
		p.obs.OnStageStart(name, num, totalSteps)
		p.emit()
	}
}

func (p *progress) fileDone() {
	p.done++
	p.emit()
}

func (p *progress) emit() {
	if p.obs == nil {
		return
	}
	p.obs.OnProgress(domain.ProgressSnapshot{
		Step:           p.name,
		StepNum:        p.num,
		TotalSteps:     totalSteps,
		FilesProcessed: p.done,
		TotalFiles:     p.total,
		Elapsed:        time.Since(p.started),
	})
}

func (p *progress) finish(fields map[string]any) {
	if p.obs != nil {
		p.obs.OnStageDone(p.name, fields, time.Since(p.started))
	}
}
