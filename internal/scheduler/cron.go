package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hdytrend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Runner 阻塞执行周期任务直到 ctx 取消。
type Runner interface {
	Start(ctx context.Context, task func(context.Context))
}

var (
	_ Runner = (*AlignedScheduler)(nil)
	_ Runner = (*CronScheduler)(nil)
)

// ParseCron 校验标准 5 段 cron 表达式（支持 @daily 等描述符），按 UTC 解释。
func ParseCron(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("cron 表达式不能为空")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("无效的 cron 表达式 %q: %w", spec, err)
	}
	return sched, nil
}

// CronScheduler 按 cron 表达式触发任务；上一次未结束时跳过本次触发。
type CronScheduler struct {
	Name string
	Spec string
}

func NewCronScheduler(name, spec string) *CronScheduler {
	return &CronScheduler{Name: name, Spec: spec}
}

func (s *CronScheduler) Start(ctx context.Context, task func(context.Context)) {
	prefix := "CronScheduler"
	if s.Name != "" {
		prefix += "[" + s.Name + "]"
	}
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	sched, err := ParseCron(s.Spec)
	if err != nil {
		logger.Warnf("%s: %v, exit", prefix, err)
		return
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(sched, cron.FuncJob(func() { task(ctx) }))
	c.Start()
	logger.Infof("%s: started spec=%q next=%s", prefix, s.Spec, sched.Next(time.Now().UTC()).Format(time.RFC3339))

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Infof("%s: ctx done, exit", prefix)
}
