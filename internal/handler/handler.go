package handler

import (
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Dataset *DatasetHandler
	Run     *RunHandler
	Catalog *CatalogHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Dataset: NewDatasetHandler(svc.Datasets),
		Run:     NewRunHandler(svc.Runs, svc.Reports, svc.Usage),
		Catalog: NewCatalogHandler(svc.Catalog),
	}
}
