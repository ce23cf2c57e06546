package transport

// BizCode 表示业务码的强类型封装，用于在日志上下文中减少误传风险。
type BizCode int

// 响应体里的 code 字段。0 成功；1~499 调用方问题（WARN）；>=500 服务端问题（ERROR）。
const (
	OK           = 0
	InvalidParam = 400
	Unauthorized = 401
	NotFound     = 404
	Conflict     = 409
	SystemError  = 500
	Unavailable  = 503
)
