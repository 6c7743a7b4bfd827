package music

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 上游没有匹配的歌曲或没有歌词
	ErrNotFound = errors.New("lyrics not found")
	// ErrUpstream 网络、状态码或解析错误
	ErrUpstream = errors.New("upstream error")
	// ErrNoLyricsFound 所有提供商都失败
	ErrNoLyricsFound = errors.New("no lyrics found")
)

// ProviderError 单个提供商的错误
type ProviderError struct {
	Provider string
	Kind     error
	Msg      string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound 构造 ErrNotFound 类错误
func NotFound(provider, format string, args ...any) error {
	return &ProviderError{Provider: provider, Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Upstream 构造 ErrUpstream 类错误
func Upstream(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: ErrUpstream, Err: err}
}

// NoLyricsError 所有提供商都没有结果
type NoLyricsError struct {
	Artist string
	Title  string
	Last   error
}

func (e *NoLyricsError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("no lyrics found for '%s - %s'", e.Artist, e.Title)
	}
	return fmt.Sprintf("no lyrics found for '%s - %s', last error: %v", e.Artist, e.Title, e.Last)
}

func (e *NoLyricsError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrNoLyricsFound}
	}
	return []error{ErrNoLyricsFound, e.Last}
}
