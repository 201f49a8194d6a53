package notifier

import "context"

// TextNotifier 是最小的文本推送接口，调用方不依赖具体实现。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop 丢弃所有消息，用于未配置通知的场景。
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
