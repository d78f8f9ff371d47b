// Package handlers implements the gin.HandlerFunc layer over
// uploadservice.Service, using a NewXHandler(service) factory pattern
// and a response.Error/response.Success-via-xerr envelope convention.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/server/uploadservice"
)

type UploadHandler struct {
	svc uploadservice.Service
}

func NewUploadHandler(svc uploadservice.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// CreateFile handles POST /upload/create.
// @Summary 创建上传会话
// @Description 注册一次新的分片上传，协商分片大小并签发上传令牌
// @Tags 上传
// @Accept json
// @Produce json
// @Param request body protocol.CreateFileRequest true "文件元信息"
// @Success 200 {object} xerr.Response
// @Failure 400 {object} xerr.Response
// @Router /upload/create [post]
func (h *UploadHandler) CreateFile(c *gin.Context) {
	var req protocol.CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	resp, err := h.svc.CreateFile(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, "CreateFile", err)
		return
	}
	xerr.Success(c, http.StatusOK, "上传会话创建成功", resp)
}

// VerifyHash handles POST /upload/verify.
// @Summary 校验文件/分片是否已存在
// @Description 根据文件哈希或分片哈希列表判断是否可以秒传或断点续传
// @Tags 上传
// @Accept json
// @Produce json
// @Param request body protocol.VerifyHashRequest true "校验请求"
// @Success 200 {object} xerr.Response
// @Router /upload/verify [post]
func (h *UploadHandler) VerifyHash(c *gin.Context) {
	var req protocol.VerifyHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	resp, err := h.svc.VerifyHash(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, "VerifyHash", err)
		return
	}
	xerr.Success(c, http.StatusOK, "校验完成", resp)
}

// UploadChunk handles POST /upload/chunk (multipart form).
// @Summary 上传单个分片
// @Description 接收一个分片的字节内容，校验哈希后写入内容寻址存储
// @Tags 上传
// @Accept multipart/form-data
// @Produce json
// @Param uploadToken formData string true "上传令牌"
// @Param chunkIndex formData int true "分片序号"
// @Param chunkHash formData string true "分片声明哈希"
// @Param chunk formData file true "分片字节内容"
// @Success 200 {object} xerr.Response
// @Failure 400 {object} xerr.Response
// @Router /upload/chunk [post]
func (h *UploadHandler) UploadChunk(c *gin.Context) {
	token := c.PostForm("uploadToken")
	chunkHash := c.PostForm("chunkHash")
	chunkIndex, err := strconv.Atoi(c.PostForm("chunkIndex"))
	if token == "" || chunkHash == "" || err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "分片上传参数无效")
		return
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "分片内容缺失: "+err.Error())
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "分片内容读取失败: "+err.Error())
		return
	}
	defer f.Close()

	resp, err := h.svc.UploadChunk(c.Request.Context(), token, chunkIndex, chunkHash, f, fileHeader.Size)
	if err != nil {
		writeServiceError(c, "UploadChunk", err)
		return
	}
	xerr.Success(c, http.StatusOK, "分片上传成功", resp)
}

// MergeFile handles POST /upload/merge.
// @Summary 合并分片为文件
// @Description 校验清单已收齐全部分片后，将其标记为已完成（仅逻辑合并，不拷贝字节）
// @Tags 上传
// @Accept json
// @Produce json
// @Param request body protocol.MergeFileRequest true "合并请求"
// @Success 200 {object} xerr.Response
// @Router /upload/merge [post]
func (h *UploadHandler) MergeFile(c *gin.Context) {
	var req protocol.MergeFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请求参数解析失败: "+err.Error())
		return
	}

	resp, err := h.svc.MergeFile(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, "MergeFile", err)
		return
	}
	xerr.Success(c, http.StatusOK, "文件合并成功", resp)
}

// GetFile handles GET /files/{fileId}, serving ranged or full reads.
// @Summary 读取已完成的文件
// @Description 按 Range 请求返回文件内容，按分片顺序流式拼接
// @Tags 文件
// @Produce octet-stream
// @Param fileId path string true "文件ID"
// @Success 200 {file} file
// @Success 206 {file} file
// @Failure 404 {object} xerr.Response
// @Router /files/{fileId} [get]
func (h *UploadHandler) GetFile(c *gin.Context) {
	fileID := c.Param("fileId")
	if fileID == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "文件ID不能为空")
		return
	}

	stream, err := h.svc.GetFileStream(c.Request.Context(), fileID, c.GetHeader("Range"))
	if err != nil {
		writeServiceError(c, "GetFile", err)
		return
	}
	defer stream.Body.Close()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", stream.MimeType)
	c.Header("Content-Length", strconv.FormatInt(stream.ContentLength, 10))

	status := http.StatusOK
	if stream.Partial {
		status = http.StatusPartialContent
		c.Header("Content-Range", formatContentRange(stream.RangeStart, stream.RangeEnd, stream.TotalSize))
	}

	c.Status(status)
	if _, err := io.Copy(c.Writer, stream.Body); err != nil {
		logger.Error("GetFile: 流式传输文件内容失败", zap.String("fileId", fileID), zap.Error(err))
	}
}

func formatContentRange(start, end, total int64) string {
	return "bytes " + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10) + "/" + strconv.FormatInt(total, 10)
}

// writeServiceError maps a uploadservice error to the matching HTTP status
// and business code via an errors.Is dispatch chain.
func writeServiceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, xerr.ErrFileAlreadyExists):
		xerr.Error(c, http.StatusConflict, xerr.FileAlreadyExistsCode, err.Error())
	case errors.Is(err, xerr.ErrFileNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.FileNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrTokenInvalid):
		xerr.Error(c, http.StatusUnauthorized, xerr.TokenInvalidCode, err.Error())
	case errors.Is(err, xerr.ErrIntegrityError):
		xerr.Error(c, http.StatusBadRequest, xerr.IntegrityErrorCode, err.Error())
	case errors.Is(err, xerr.ErrManifestIncomplete):
		xerr.Error(c, http.StatusConflict, xerr.ManifestIncompleteCode, err.Error())
	case errors.Is(err, xerr.ErrRangeUnsatisfiable):
		xerr.Error(c, http.StatusRequestedRangeNotSatisfiable, xerr.RangeNotSatisfiable, err.Error())
	case errors.Is(err, xerr.ErrInvalidParams):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
	case errors.Is(err, xerr.ErrStorageError):
		xerr.Error(c, http.StatusInternalServerError, xerr.StorageErrorCode, err.Error())
	case errors.Is(err, xerr.ErrDatabaseError):
		xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, err.Error())
	default:
		logger.Error(op+": 未分类的上传服务错误", zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "服务器内部错误")
	}
}
