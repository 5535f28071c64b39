package pipeline

import (
	"time"

	"github.com/phototidy/phototidy/internal/config"
	"github.com/phototidy/phototidy/internal/domain"
)

// Observer 用于把“运行进度/阶段信息”从核心执行流程中解耦出来。
//
// 约束：
// - pipeline 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 所有事件都在 Orchestrator 的单一收集路径上发出，实现无需加锁。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnStageStart 在某个阶段开始时调用。
	OnStageStart(name string, num, total int)
	// OnStageDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnStageDone(name string, fields map[string]any, dur time.Duration)
	// OnProgress 在阶段内每处理完一个文件后调用（用于进度条/ETA）。
	OnProgress(snap domain.ProgressSnapshot)
}
