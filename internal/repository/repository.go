package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB          *gorm.DB // 直接访问数据库
	Datasets    DatasetRepository
	Queries     QueryRepository
	Runs        RunRepository
	Responses   MessageResponseRepository
	Validations ValidationRepository
	Criteria    CriterionRepository
	Prompts     PromptRepository
	Files       FileRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Datasets:    &datasetRepository{db: db},
		Queries:     &queryRepository{db: db},
		Runs:        &runRepository{db: db},
		Responses:   &messageResponseRepository{db: db},
		Validations: &validationRepository{db: db},
		Criteria:    &criterionRepository{db: db},
		Prompts:     &promptRepository{db: db},
		Files:       &fileRepository{db: db},
	}
}

// translate 将 gorm 的未找到错误转换为 ErrNotFound
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// affected 根据影响行数判断记录是否存在
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteRunDependents 删除运行的派生数据
func deleteRunDependents(tx *gorm.DB, runIDs []uint) error {
	if len(runIDs) == 0 {
		return nil
	}
	if err := tx.Where("run_id IN ?", runIDs).Delete(&model.Validation{}).Error; err != nil {
		return err
	}
	if err := tx.Where("run_id IN ?", runIDs).Delete(&model.RunValidationBatch{}).Error; err != nil {
		return err
	}
	return tx.Where("run_id IN ?", runIDs).Delete(&model.MessageResponse{}).Error
}
