package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// ErrFileNotFound 文件记录不存在
var ErrFileNotFound = errors.New("file not found")

// Service 文件服务
type Service struct {
	repo        *repository.Repositories
	storage     Storage
	storageType StorageType
	now         func() time.Time
}

// NewService 创建文件服务
func NewService(repo *repository.Repositories, storage Storage, storageType StorageType) *Service {
	return &Service{
		repo:        repo,
		storage:     storage,
		storageType: storageType,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceFromConfig 按配置选择存储后端
func NewServiceFromConfig(ctx context.Context, repo *repository.Repositories, cfg config.StorageConfig) (*Service, error) {
	var (
		storage Storage
		err     error
	)

	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		basePath := cfg.Local.BasePath
		if basePath == "" {
			basePath = "./data/uploads"
		}
		storage, err = NewLocalStorage(basePath)
		cfg.Type = string(StorageTypeLocal)
	case StorageTypeMinIO:
		storage, err = NewMinIOStorage(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	return NewService(repo, storage, StorageType(cfg.Type)), nil
}

// Archive 归档上传内容并记录，路径前缀为 transcripts/{yyyy}/{mm}
func (s *Service) Archive(ctx context.Context, fileName, contentType string, data []byte) (*model.UploadedFile, error) {
	filePath, err := s.storage.Save(ctx, &SaveRequest{
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
		Prefix:      s.now().Format("transcripts/2006/01"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	record := &model.UploadedFile{
		FileName:    fileName,
		FileSize:    int64(len(data)),
		ContentType: contentType,
		StorageType: string(s.storageType),
		FilePath:    filePath,
	}
	if err := s.repo.Files.Create(ctx, record); err != nil {
		_ = s.storage.Delete(ctx, filePath)
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}
	return record, nil
}

// Open 打开已归档文件
func (s *Service) Open(ctx context.Context, id string) (*model.UploadedFile, io.ReadCloser, error) {
	record, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Get(ctx, record.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get file content: %w", err)
	}
	return record, reader, nil
}

// Delete 删除文件与记录
func (s *Service) Delete(ctx context.Context, id string) error {
	record, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, record.FilePath); err != nil {
		return fmt.Errorf("failed to delete file from storage: %w", err)
	}
	if err := s.repo.Files.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id string) (*model.UploadedFile, error) {
	record, err := s.repo.Files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
		}
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	return record, nil
}
