package market

import "context"

// Source 统一不同行情源的历史拉取行为。
//
// since 非空时返回日期 >= *since 的 bar（包含边界，便于调用方识别重叠），
// 否则返回全部历史。结果必须按日期升序。超时与取消由 ctx 控制。
type Source interface {
	Fetch(ctx context.Context, symbol string, since *string) ([]Bar, error)
	Name() string
}

// SourceFunc 让普通函数满足 Source。
type SourceFunc func(ctx context.Context, symbol string, since *string) ([]Bar, error)

func (f SourceFunc) Fetch(ctx context.Context, symbol string, since *string) ([]Bar, error) {
	return f(ctx, symbol, since)
}

func (f SourceFunc) Name() string { return "func" }
