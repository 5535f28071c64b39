// Package quality 并发评估媒体文件质量：过小、损坏、模糊。
// 共享的最佳照片评分也放在这里（重复/连拍分组都用它）。
package quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/phototidy/phototidy/internal/domain"
)

// 质量阈值。边界语义：恰好等于阈值不算违规，低一字节/一像素才算。
const (
	MinFileSizeBytes = 50 * 1024
	MinResolution    = 100000
	BlurThreshold    = 100.0
)

// ErrUnsupportedFormat 表示探测器不认识该格式（典型：无 exiftool 时的
// 视频与 HEIC/WebP）。语义是“尺寸无从评估”，不是“文件损坏”：
// 评估器跳过分辨率与清晰度检查，不设置任何质量标记。
var ErrUnsupportedFormat = errors.New("quality: 无法评估的媒体格式")

// DimensionProber 探测像素尺寸（生产实现：exiftool 子进程或纯 Go 解码）。
type DimensionProber interface {
	ProbeDimensions(ctx context.Context, path string) (width, height int, err error)
}

// SharpnessScorer 计算清晰度评分，越高越清晰（生产实现：拉普拉斯方差）。
type SharpnessScorer interface {
	SharpnessScore(path string) (float64, error)
}

// Chain 依次尝试多个探测器，第一个成功者生效。
// 全部失败时，真实失败优先于 ErrUnsupportedFormat 返回：
// 只要有一个探测器认识该格式却探测不出来，就按损坏处理。
type Chain []DimensionProber

func (c Chain) ProbeDimensions(ctx context.Context, path string) (int, int, error) {
	var lastErr error
	for _, p := range c {
		w, h, err := p.ProbeDimensions(ctx, path)
		if err == nil {
			return w, h, nil
		}
		if lastErr == nil || errors.Is(lastErr, ErrUnsupportedFormat) {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("没有可用的尺寸探测器")
	}
	return 0, 0, lastErr
}

// Assessor 并发评估所有记录，产出质量 Issue。
//
// 单条记录的检查顺序（硬约束，且最多贡献一个 Issue）：
//  1. 文件体积 < 50KB → too_small，终止
//  2. 探测像素尺寸失败 → IsCorrupted，blur_or_corrupt，终止
//     （ErrUnsupportedFormat 例外：尺寸无从评估，直接放行）
//  3. 宽×高 < 100000 → too_small，终止
//  4. 仅图片：清晰度 < 100.0 → IsBlurry，blur_or_corrupt
type Assessor struct {
	Logger  *slog.Logger
	Workers int
	Prober  DimensionProber
	Scorer  SharpnessScorer
}

// Run 评估所有记录。Issue 按成员路径排序后返回（结果落地顺序不确定，
// 排序保证可复现）。onFile 在收集 goroutine 上串行调用，可为 nil。
func (a *Assessor) Run(ctx context.Context, records []*domain.PhotoRecord, onFile func()) ([]domain.Issue, error) {
	workers := a.Workers
	if workers < 1 {
		workers = 1
	}

	type outcome struct {
		issue *domain.Issue
	}

	jobs := make(chan *domain.PhotoRecord)
	results := make(chan outcome, len(records))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				// 取消后只清空队列，不再做事。
				if ctx.Err() != nil {
					continue
				}
				results <- outcome{issue: a.assessOne(ctx, rec)}
			}
		}()
	}

	go func() {
		for _, rec := range records {
			jobs <- rec
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	issues := make([]domain.Issue, 0, 16)
	for out := range results {
		if out.issue != nil {
			issues = append(issues, *out.issue)
		}
		if onFile != nil {
			onFile()
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		return issues[i].Files[0].Path < issues[j].Files[0].Path
	})
	return issues, ctx.Err()
}

func (a *Assessor) assessOne(ctx context.Context, rec *domain.PhotoRecord) *domain.Issue {
	if rec.SizeBytes < MinFileSizeBytes {
		return newIssue(domain.CategoryTooSmall, rec,
			fmt.Sprintf("文件过小（%d 字节）", rec.SizeBytes))
	}

	w, h, err := a.Prober.ProbeDimensions(ctx, rec.Path)
	if errors.Is(err, ErrUnsupportedFormat) {
		// 格式不认识 ≠ 损坏：后续检查全部跳过，Width/Height 保持 0。
		return nil
	}
	if err != nil {
		rec.IsCorrupted = true
		return newIssue(domain.CategoryBlurOrCorrupt, rec,
			fmt.Sprintf("无法读取尺寸，疑似损坏：%v", err))
	}
	rec.Width, rec.Height = w, h

	if w*h < MinResolution {
		return newIssue(domain.CategoryTooSmall, rec,
			fmt.Sprintf("分辨率过低（%dx%d）", w, h))
	}

	ext := strings.ToLower(filepath.Ext(rec.Path))
	if !domain.IsImageExt(ext) {
		return nil
	}
	score, err := a.Scorer.SharpnessScore(rec.Path)
	if err != nil {
		// 评分失败不等于损坏：记日志后放行。
		a.Logger.Warn("清晰度评分失败", "path", rec.Path, "err", err)
		return nil
	}
	rec.BlurScore = score
	rec.HasBlurScore = true
	if score < BlurThreshold {
		rec.IsBlurry = true
		return newIssue(domain.CategoryBlurOrCorrupt, rec,
			fmt.Sprintf("清晰度过低（%.1f）", score))
	}
	return nil
}

func newIssue(category string, rec *domain.PhotoRecord, desc string) *domain.Issue {
	return &domain.Issue{
		Category:    category,
		Files:       []*domain.PhotoRecord{rec},
		GroupID:     uuid.NewString()[:8],
		Description: desc,
	}
}
