package scheduler

import (
	"context"
	"time"

	"hdytrend/internal/logger"
)

// AlignedScheduler 在 Interval 的整点边界加 Offset 处执行任务，
// 例如 Interval=24h、Offset=1m 即每天 UTC 00:01 刷新刚收盘的日线。
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(name string, interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// Start 阻塞运行直到 ctx 取消。任务串行执行，耗时超过一个周期时跳过错过的边界。
func (s *AlignedScheduler) Start(ctx context.Context, task func(context.Context)) {
	if s == nil {
		return
	}
	prefix := s.prefix()
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.Offset < 0 || s.Offset >= s.Interval {
		logger.Warnf("%s: offset=%s out of range, clamp to 0", prefix, s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s offset=%s run_immediately=%v at=%s",
		prefix, s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		task(ctx)
	}

	for {
		now := s.nowFn().UTC()
		wakeAt := s.nextRun(now)
		wait := wakeAt.Sub(now)
		logger.Debugf("%s: 下次执行=%s (in %s) | uptime=%s",
			prefix,
			wakeAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("%s: ctx done, exit", prefix)
			return
		case <-timer.C:
		}
		task(ctx)
	}
}

// nextRun 返回严格晚于 now 的下一个 边界+Offset 时刻。
func (s *AlignedScheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	at := now.Truncate(s.Interval).Add(s.Offset)
	if !at.After(now) {
		at = at.Add(s.Interval)
	}
	return at
}

func (s *AlignedScheduler) prefix() string {
	if s.Name == "" {
		return "AlignedScheduler"
	}
	return "AlignedScheduler[" + s.Name + "]"
}
