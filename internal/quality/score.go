package quality

import "github.com/phototidy/phototidy/internal/domain"

// Score 给单条记录打分。公式是启发式的（各分量经验加权），
// 下游测试依赖它的单调性，不要“改进”权重：
//
//	体积(MB) + 分辨率(百万像素) + 清晰度/100（有评分时） + 10（有 sidecar） + 5（不模糊）
func Score(rec *domain.PhotoRecord) float64 {
	s := float64(rec.SizeBytes) / (1024 * 1024)
	s += float64(rec.Width) * float64(rec.Height) / 1e6
	if rec.HasBlurScore {
		s += rec.BlurScore / 100
	}
	if rec.HasSidecar {
		s += 10
	}
	if !rec.IsBlurry {
		s += 5
	}
	return s
}

// SelectBest 返回得分最高的记录；同分取先出现者（稳定）。空切片返回 nil。
// 重复组、连拍组与 review 排序共用这一个实现。
func SelectBest(recs []*domain.PhotoRecord) *domain.PhotoRecord {
	if len(recs) == 0 {
		return nil
	}
	best := recs[0]
	bestScore := Score(best)
	for _, rec := range recs[1:] {
		if s := Score(rec); s > bestScore {
			best, bestScore = rec, s
		}
	}
	return best
}
