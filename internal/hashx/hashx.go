// Package hashx 用有界 worker pool 计算媒体文件的全文 SHA-256。
package hashx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/phototidy/phototidy/internal/domain"
)

// Hasher 并发计算内容指纹。
//
// 约束：
// - 并发度来自配置（Workers < 1 按 1 处理）
// - 每条记录只被一个 worker 写，ContentHash 无并发写冲突
// - 不可读文件记日志后跳过，hash 保持空串（不参与重复分组）
// - 取消在每次出队时检查：剩余任务被清空但不再计算
type Hasher struct {
	Logger  *slog.Logger
	Workers int
}

// Run 为所有记录计算 hash。每完成一个文件调用一次 onFile（在收集
// goroutine 上串行调用，可为 nil）。取消时返回 ctx.Err()。
func (h *Hasher) Run(ctx context.Context, records []*domain.PhotoRecord, onFile func()) error {
	workers := h.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *domain.PhotoRecord)
	results := make(chan struct{}, len(records))

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
				h.hashOne(rec)
				results <- struct{}{}
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

	for range results {
		if onFile != nil {
			onFile()
		}
	}
	return ctx.Err()
}

func (h *Hasher) hashOne(rec *domain.PhotoRecord) {
	f, err := os.Open(rec.Path)
	if err != nil {
		h.Logger.Warn("文件不可读，跳过 hash", "path", rec.Path, "err", err)
		return
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		h.Logger.Warn("读取文件失败，跳过 hash", "path", rec.Path, "err", err)
		return
	}
	rec.ContentHash = hex.EncodeToString(sum.Sum(nil))
}
