package factory

import (
	"context"
	"fmt"
	"time"

	"go-plate-recognizer/internal/config"
	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/engine/rekognition"
	"go-plate-recognizer/internal/engine/tesseract"
	"go-plate-recognizer/internal/recognizer"
	"go-plate-recognizer/internal/storage"
)

// EngineType names a recognition engine binding
type EngineType string

const (
	// TesseractEngine runs the local Tesseract OCR
	TesseractEngine EngineType = config.EngineTesseract
	// RekognitionEngine calls AWS Rekognition text detection
	RekognitionEngine EngineType = config.EngineRekognition
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// EngineFactory creates recognition engines
type EngineFactory interface {
	CreateEngine(ctx context.Context, engineType EngineType) (engine.Engine, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
	CreateBlobStorage() (storage.BlobStorage, error)
}

type engineFactory struct {
	language string
	region   string
	timeout  time.Duration
}

// NewEngineFactory creates an engine factory from the engine settings of cfg
func NewEngineFactory(cfg *config.Config) EngineFactory {
	return &engineFactory{
		language: cfg.TesseractLanguage,
		region:   cfg.AWSRegion,
		timeout:  cfg.EngineTimeout,
	}
}

// CreateEngine creates an engine based on the specified type. Engines that hold
// native resources implement io.Closer.
func (f *engineFactory) CreateEngine(ctx context.Context, engineType EngineType) (engine.Engine, error) {
	switch engineType {
	case TesseractEngine:
		return tesseract.New(f.language)
	case RekognitionEngine:
		return rekognition.NewFromRegion(ctx, f.region, f.timeout)
	default:
		return nil, fmt.Errorf("unsupported engine type: %s", engineType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(
			storage.WithTimeout(f.cfg.ImageFetchTimeout),
			storage.WithMaxBytes(f.cfg.MaxRequestBodySize),
		), nil
	case AzureStorage:
		blobs, err := f.CreateBlobStorage()
		if err != nil {
			return nil, err
		}
		return storage.BlobImageFetcher{Storage: blobs}, nil
	case LocalStorage:
		return storage.NewLocalImageFetcher(""), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateBlobStorage connects to the configured Azure account
func (f *storageFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	if !f.cfg.AzureEnabled() {
		return nil, fmt.Errorf("azure storage needs AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
	}
	return storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
}

// CreateDiagnosticSink returns the configured diagnostic sink, or nil when
// diagnostics are off. A local path wins over an Azure container.
func CreateDiagnosticSink(cfg *config.Config, storages StorageFactory) (recognizer.DiagnosticSink, error) {
	switch {
	case cfg.DiagnosticPath != "":
		return storage.NewFileSink(cfg.DiagnosticPath)
	case cfg.AzureDiagnosticContainer != "":
		blobs, err := storages.CreateBlobStorage()
		if err != nil {
			return nil, err
		}
		return storage.NewBlobSink(blobs, cfg.AzureDiagnosticContainer), nil
	default:
		return nil, nil
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(cfg),
		StorageFactory: NewStorageFactory(cfg),
	}
}
