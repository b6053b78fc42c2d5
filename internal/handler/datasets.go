package handler

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/internal/storage"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
)

// DatasetReader gives read access to stored datasets.
type DatasetReader interface {
	Open(name string) (*os.File, error)
	List() ([]string, error)
}

// DatasetHandler serves stored datasets.
type DatasetHandler struct {
	store  DatasetReader
	logger *logger.Logger
}

// NewDatasetHandler creates a new dataset handler.
func NewDatasetHandler(store DatasetReader, log *logger.Logger) *DatasetHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &DatasetHandler{
		store:  store,
		logger: log.Named("datasets"),
	}
}

// Get handles GET /datasets/{file_name}
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file_name")

	f, err := h.store.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("failed to open dataset", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read dataset")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat dataset", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read dataset")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// List handles GET /datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List()
	if err != nil {
		h.logger.Error("failed to list datasets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list datasets")
		return
	}

	writeJSON(w, http.StatusOK, model.ListDatasetsResponse{
		Datasets: names,
		Total:    len(names),
	})
}
