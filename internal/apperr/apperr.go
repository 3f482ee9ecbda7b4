// Package apperr 定义了贯穿整个服务的类型化错误分类。
// 处理器根据 Kind 决定 HTTP 状态码，调用方根据 Retryable 判断是否可以重试，
// 避免所有失败都被折叠成笼统的 500。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 标识错误所属的类别。
type Kind int

const (
	KindInternal   Kind = iota // 未归类的内部错误
	KindValidation             // 请求参数非法（空查询、不支持的文件类型等）
	KindExtraction             // 文本提取失败或提取结果为空
	KindEmbedding              // 向量化调用失败
	KindIndex                  // 向量索引不可用或写入失败
	KindRetrieval              // 检索阶段失败
	KindRerank                 // 交叉编码器打分失败
	KindGeneration             // 生成调用失败
	KindConsistency            // 目录与向量索引在生命周期操作后不一致
	KindNotFound               // 资源不存在或不属于请求者
	KindForbidden              // 权限不足
	KindUnauthorized           // 未认证
)

// String 返回 Kind 的可读名称，用于日志。
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExtraction:
		return "extraction"
	case KindEmbedding:
		return "embedding"
	case KindIndex:
		return "index"
	case KindRetrieval:
		return "retrieval"
	case KindRerank:
		return "rerank"
	case KindGeneration:
		return "generation"
	case KindConsistency:
		return "consistency"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error 是带类别标签的错误。Err 保留底层原因以便 errors.Is/As 继续穿透。
type Error struct {
	Kind      Kind
	Msg       string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建一个只有消息的分类错误。
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf 创建一个带格式化消息的分类错误。
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 将底层错误包装为指定类别。
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Retryable 将底层错误包装为指定类别并标记可重试（索引/生成的瞬时失败）。
func Retryable(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Retryable: true, Err: err}
}

// KindOf 提取错误的类别；非分类错误一律视为 internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind 判断错误是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable 判断错误是否被标记为可重试。
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
