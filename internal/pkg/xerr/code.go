package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode    = 40000 // 无效的请求参数
	ValidationFailedCode = 40001 // 参数验证失败
	MethodNotAllowedCode = 40002 // HTTP 方法不支持
	ChunkTooLargeCode    = 40003 // 分片过大，超出协商范围
	InvalidArgumentCode  = 40004 // 构造参数非法（程序错误）
	RangeNotSatisfiable  = 40005 // Range 请求无法满足
	ChunkMissingCode     = 40011 // 上传分片丢失
	HashMismatchCode     = 40012 // 文件Hash校验失败
	IntegrityErrorCode   = 40013 // 分片内容与声明哈希不一致
	FileMismatchCode     = 40014 // 续传文件与记录不匹配
	InvalidTransitionCode = 40015 // 任务状态机非法迁移

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode = 40100 // 通用未授权
	TokenInvalidCode = 40101 // 上传Token无效或已过期

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode              = 40400 // 通用资源未找到
	FileNotFoundCode          = 40402 // 文件不存在
	UploadSessionNotFoundCode = 40406 // 上传会话不存在
	ChunkNotFoundCode         = 40407 // 分片不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	FileAlreadyExistsCode = 40904 // 文件已存在（秒传场景之外的冲突）
	ManifestIncompleteCode = 40905 // 合并时清单未收齐全部分片

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败（如MinIO）
	StorageUnavailableCode  = 50003 // 存储不可用，已降级为内存模式
	QuotaExceededCode       = 50004 // 持久化存储配额已满
	OperationFailedCode     = 50005 // 持久化操作失败
	NetworkErrorCode        = 50006 // 适配器网络错误
)
