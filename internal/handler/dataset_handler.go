package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/dataset"
)

// DatasetHandler 数据集处理器
type DatasetHandler struct {
	svc *dataset.Service
}

// NewDatasetHandler 创建数据集处理器
func NewDatasetHandler(svc *dataset.Service) *DatasetHandler {
	return &DatasetHandler{svc: svc}
}

type parseRequest struct {
	Name           string  `json:"name" binding:"required"`
	Content        string  `json:"content" binding:"required"`
	SystemBehavior *string `json:"system_behavior"`
}

// ParseTranscript 解析粘贴的转录
func (h *DatasetHandler) ParseTranscript(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.ParseTranscript(c.Request.Context(), &dataset.ParseRequest{
		Name:           req.Name,
		Content:        req.Content,
		SystemBehavior: req.SystemBehavior,
	})
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, data)
}

// UploadTranscript 上传转录文件（multipart: file, name, system_behavior）
func (h *DatasetHandler) UploadTranscript(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	var behavior *string
	if v, ok := c.GetPostForm("system_behavior"); ok {
		behavior = &v
	}

	out, err := h.svc.ImportFile(c.Request.Context(), &dataset.ImportFileRequest{
		Name:           c.PostForm("name"),
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Data:           data,
		SystemBehavior: behavior,
	})
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, out)
}

// CreateDataset 手工创建数据集
func (h *DatasetHandler) CreateDataset(c *gin.Context) {
	var req dataset.CreateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.CreateDataset(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, data)
}

// ListDatasets 列出数据集
func (h *DatasetHandler) ListDatasets(c *gin.Context) {
	datasets, err := h.svc.ListDatasets(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, datasets)
}

// GetDataset 获取数据集及其查询
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.svc.GetDataset(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// UpdateDataset 更新数据集
func (h *DatasetHandler) UpdateDataset(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dataset.UpdateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.UpdateDataset(c.Request.Context(), id, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// DeleteDataset 删除数据集
func (h *DatasetHandler) DeleteDataset(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteDataset(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// EvaluateExpectations 评估期望清晰度
func (h *DatasetHandler) EvaluateExpectations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.EvaluateExpectations(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// ========== 查询操作 ==========

// CreateQuery 追加查询
func (h *DatasetHandler) CreateQuery(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dataset.QueryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	q, err := h.svc.CreateQuery(c.Request.Context(), id, req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, q)
}

// ImportQueries 批量导入查询
func (h *DatasetHandler) ImportQueries(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Queries []dataset.QueryInput `json:"queries" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	queries, err := h.svc.ImportQueries(c.Request.Context(), id, req.Queries)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, queries)
}

// UpdateQuery 更新查询
func (h *DatasetHandler) UpdateQuery(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	queryID, ok := paramID(c, "query_id")
	if !ok {
		return
	}
	var req dataset.UpdateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	q, err := h.svc.UpdateQuery(c.Request.Context(), id, queryID, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, q)
}

// ReorderQueries 重排查询
func (h *DatasetHandler) ReorderQueries(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		QueryIDs []uint `json:"query_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.ReorderQueries(c.Request.Context(), id, req.QueryIDs)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// paramID 解析路径中的数字 id，失败时写入 400
func paramID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
