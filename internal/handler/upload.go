// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/middleware"
	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/internal/service"
	"github.com/capitalize-ai/vcon-datasets/internal/storage"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
)

const (
	uploadField        = "files"
	jsonContentType    = "application/json"
	multipartMemory    = 8 << 20
	msgParsed          = "Conversation parsed successfully"
	msgParseFailed     = "Conversation parsing failed"
	msgOnlyJSON        = "Only JSON files are accepted."
	msgInvalidJSON     = "Invalid JSON format."
	msgNoFiles         = "No files uploaded."
	msgInvalidFileName = "Invalid file name."
)

// Ingester runs one record through the ingestion pipeline.
type Ingester interface {
	Run(ctx context.Context, rec service.Record) (*model.ConversationDataset, error)
}

// UploadHandler handles the synchronous upload intake.
type UploadHandler struct {
	pipeline Ingester
	logger   *logger.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(pipeline Ingester, log *logger.Logger) *UploadHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &UploadHandler{
		pipeline: pipeline,
		logger:   log.Named("upload"),
	}
}

type uploadedFile struct {
	name string
	data []byte
}

// Upload handles POST /vcon-upload
//
// Every file in the batch is checked for content type and JSON syntax before
// any of them is extracted. Files are then processed one after another and
// the response lists the outcome of each.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx))

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(w, http.StatusRequestEntityTooLarge, service.CodeInvalidInput, "request body too large")
			return
		}
		writeErrorCode(w, http.StatusBadRequest, service.CodeInvalidInput, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeErrorCode(w, http.StatusBadRequest, service.CodeInvalidInput, msgNoFiles)
		return
	}

	files := make([]uploadedFile, 0, len(headers))
	for _, fh := range headers {
		if !isJSONContentType(fh.Header.Get("Content-Type")) {
			writeErrorCode(w, http.StatusBadRequest, service.CodeInvalidInput, msgOnlyJSON)
			return
		}

		name := filepath.Base(fh.Filename)
		if err := storage.ValidateName(name); err != nil {
			writeErrorCode(w, http.StatusBadRequest, service.CodeInvalidInput, msgInvalidFileName)
			return
		}

		data, err := readPart(fh)
		if err != nil {
			log.Warn("failed to read uploaded file", zap.String("name", name), zap.Error(err))
			writeErrorCode(w, http.StatusBadRequest, service.CodeInvalidInput, msgInvalidJSON)
			return
		}
		if _, err := service.ValidateRecord(data); err != nil {
			writeErrorCode(w, http.StatusBadRequest, service.CodeInvalidInput, msgInvalidJSON)
			return
		}

		files = append(files, uploadedFile{name: name, data: data})
	}

	results := make([]model.IngestionOutcome, 0, len(files))
	var firstErr error
	for _, f := range files {
		dataset, err := h.pipeline.Run(ctx, service.Record{
			Name:   f.name,
			Source: model.SourceUpload,
			Data:   f.data,
		})
		results = append(results, uploadOutcome(f.name, dataset, err))
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		code := service.ErrorCode(firstErr)
		writeJSON(w, failureStatus(code), model.UploadResponse{
			Error:   msgParseFailed,
			Code:    code,
			Results: results,
		})
		return
	}

	log.Info("upload batch ingested", zap.Int("files", len(files)))
	writeJSON(w, http.StatusOK, model.UploadResponse{
		Message: msgParsed,
		Results: results,
	})
}

func isJSONContentType(v string) bool {
	mediaType, _, err := mime.ParseMediaType(v)
	return err == nil && mediaType == jsonContentType
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func uploadOutcome(name string, dataset *model.ConversationDataset, err error) model.IngestionOutcome {
	out := model.IngestionOutcome{
		Name:        name,
		Source:      model.SourceUpload,
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		out.Status = model.OutcomeFailed
		out.Stage = string(service.FailedStage(err))
		out.Code = service.ErrorCode(err)
		out.Error = err.Error()
		return out
	}
	out.Status = model.OutcomeSucceeded
	out.Stage = string(service.StateDone)
	out.DatasetURL = service.DatasetURL(name)
	if dataset != nil {
		out.Pairs = len(dataset.Conversation)
	}
	return out
}

// failureStatus maps a pipeline error code to an HTTP status.
func failureStatus(code string) int {
	switch code {
	case service.CodeInvalidInput:
		return http.StatusBadRequest
	case service.CodeExtractionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
