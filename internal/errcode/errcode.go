package errcode

import "errors"

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（输入不合法、资源超限、记录不存在等）
// - 5xxx：系统错误（存储、传输失败）
const (
	OK               = 0
	Validation       = 4000
	NotPermitted     = 4003
	NotFound         = 4004
	OverrideRequired = 4009
	ResourceLimit    = 4013
	SystemError      = 5000
	TransportFailure = 5002
)

// 哨兵错误，各层通过 fmt.Errorf("...: %w") 包装后向上传递。
var (
	ErrValidation       = errors.New("validation failed")
	ErrResourceLimit    = errors.New("resource limit exceeded")
	ErrNotFound         = errors.New("record not found")
	ErrPersistence      = errors.New("persistence failure")
	ErrTransport        = errors.New("transport failure")
	ErrNotPermitted     = errors.New("not permitted")
	ErrOverrideRequired = errors.New("operator override required")
)

// Code 将错误映射为错误码，未知错误视为系统错误。
func Code(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrValidation):
		return Validation
	case errors.Is(err, ErrOverrideRequired):
		return OverrideRequired
	case errors.Is(err, ErrNotPermitted):
		return NotPermitted
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrResourceLimit):
		return ResourceLimit
	case errors.Is(err, ErrTransport):
		return TransportFailure
	default:
		return SystemError
	}
}

// Recoverable 判断错误是否属于可在本地恢复的 4xxx 类。
func Recoverable(err error) bool {
	code := Code(err)
	return code >= 4000 && code < 5000
}
