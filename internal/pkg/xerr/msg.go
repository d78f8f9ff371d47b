package xerr

import "errors"

var (
	// 通用错误
	ErrSuccess        = errors.New("操作成功")
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams    = errors.New("无效的请求参数")
	ErrValidationFailed = errors.New("参数验证失败")
	ErrInvalidArgument  = errors.New("构造参数非法")
	ErrChunkMissing     = errors.New("部分上传分片丢失，请重新上传")
	ErrHashMismatch     = errors.New("文件哈希值校验失败")
	ErrIntegrityError   = errors.New("分片内容与声明哈希不一致")
	ErrFileMismatch     = errors.New("续传文件与已保存记录不匹配")
	ErrInvalidTransition = errors.New("任务状态机不允许该迁移")
	ErrRangeUnsatisfiable = errors.New("请求的字节范围无法满足")

	// 上传会话 / Token 错误
	ErrUnauthorized          = errors.New("未授权的请求")
	ErrTokenInvalid          = errors.New("上传 Token 无效或已过期")
	ErrUploadSessionNotFound = errors.New("上传会话不存在或已过期")

	// 资源未找到
	ErrFileNotFound  = errors.New("文件不存在")
	ErrChunkNotFound = errors.New("分片不存在")

	// 业务逻辑冲突
	ErrFileAlreadyExists    = errors.New("文件已存在")
	ErrManifestIncomplete   = errors.New("清单尚未收齐全部分片，无法合并")

	// 持久化 / 基础设施错误（进度存储）
	ErrStorageUnavailable = errors.New("持久化存储不可用，已降级为内存模式")
	ErrQuotaExceeded      = errors.New("持久化存储配额已满")
	ErrOperationFailed    = errors.New("持久化操作失败")

	// 适配器 / 网络错误
	ErrNetworkError = errors.New("网络请求失败")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储服务操作失败")
)
