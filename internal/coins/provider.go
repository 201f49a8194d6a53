package coins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hdytrend/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

// SymbolProvider 提供每轮刷新要同步的 symbol 列表。
type SymbolProvider interface {
	List(ctx context.Context) ([]string, error)
	Name() string
}

// NormalizeSymbols 去重并统一为紧凑大写格式；结果为空时报错。
func NormalizeSymbols(symbols []string) ([]string, error) {
	out := symbol.NormalizeList(symbols)
	if len(out) == 0 {
		return nil, errors.New("symbol list is empty")
	}
	return out, nil
}

// StaticProvider 返回配置中的固定列表。
type StaticProvider struct{ symbols []string }

func NewStaticProvider(symbols []string) *StaticProvider {
	return &StaticProvider{symbols: symbols}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) List(_ context.Context) ([]string, error) {
	return NormalizeSymbols(p.symbols)
}

// HTTPProvider 从远程 API 拉取列表。Path 为 gjson 路径；
// 为空时依次尝试根数组与 "symbols" 字段。
type HTTPProvider struct {
	URL    string
	Path   string
	Client *http.Client
}

func NewHTTPProvider(url, path string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{URL: url, Path: path, Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) List(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(p.URL) == "" {
		return nil, errors.New("symbol API URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching symbols: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("parsing response: invalid json")
	}

	var list gjson.Result
	switch {
	case p.Path != "":
		list = gjson.GetBytes(body, p.Path)
	case gjson.ParseBytes(body).IsArray():
		list = gjson.ParseBytes(body)
	default:
		list = gjson.GetBytes(body, "symbols")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("parsing response: %q is not an array", p.Path)
	}
	var raw []string
	for _, item := range list.Array() {
		raw = append(raw, item.String())
	}
	return NormalizeSymbols(raw)
}

// FallbackProvider 在主来源失败时退回备用来源。
type FallbackProvider struct {
	Primary  SymbolProvider
	Fallback SymbolProvider
	OnError  func(error)
}

func (p *FallbackProvider) Name() string {
	return p.Primary.Name() + "+" + p.Fallback.Name()
}

func (p *FallbackProvider) List(ctx context.Context) ([]string, error) {
	out, err := p.Primary.List(ctx)
	if err == nil {
		return out, nil
	}
	if p.OnError != nil {
		p.OnError(err)
	}
	return p.Fallback.List(ctx)
}
