package domain

import "time"

// ProgressSnapshot 是某一时刻流水线进度的只读快照。
// 由 Orchestrator 发布给 Observer；表示层不反向持有任何流水线状态。
type ProgressSnapshot struct {
	Step       string // 当前阶段名（人类可读）
	StepNum    int    // 1-based
	TotalSteps int

	// FilesProcessed/TotalFiles 只统计当前阶段；阶段切换时归零。
	FilesProcessed int
	TotalFiles     int

	Elapsed time.Duration // 当前阶段已耗时
}

// Percent 计算整体完成百分比（阶段权重 + 阶段内文件权重），上限 100。
func (p ProgressSnapshot) Percent() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	stepWeight := float64(p.StepNum) / float64(p.TotalSteps) * 100
	fileWeight := 0.0
	if p.TotalFiles > 0 {
		fileWeight = float64(p.FilesProcessed) / float64(p.TotalFiles) * (100 / float64(p.TotalSteps))
	}
	pct := stepWeight + fileWeight
	if pct > 100 {
		return 100
	}
	return pct
}

// ETA 估算当前阶段剩余耗时。
// FilesProcessed == 0 时无法估算，返回 (0, false)。
func (p ProgressSnapshot) ETA() (time.Duration, bool) {
	if p.FilesProcessed <= 0 || p.Elapsed <= 0 {
		return 0, false
	}
	rate := float64(p.FilesProcessed) / p.Elapsed.Seconds() // files per second
	remaining := p.TotalFiles - p.FilesProcessed
	if remaining <= 0 || rate <= 0 {
		return 0, false
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}
