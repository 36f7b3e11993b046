package workspace

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"studydesk/internal/assessment"
	"studydesk/internal/notify"
	"studydesk/internal/progress"
)

// Upload describes a file dropped on the upload view. Only its metadata is
// used; contents are never read.
type Upload struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// Workspace is the state of one dashboard view. It lives from Create until
// Dispose and is never persisted.
type Workspace struct {
	ID          string
	CreatedAt   time.Time
	Uploads     *progress.Board
	Assessments *assessment.Generator
	Events      *notify.Hub

	catalog        assessment.Catalog
	allowedExts    map[string]struct{}
	maxUploadBytes int64
}

// Source resolves catalog documents first, then this workspace's uploads.
// An upload counts as processed once it completed.
func (w *Workspace) Source(id string) (assessment.Source, bool) {
	if src, ok := w.catalog.Source(id); ok {
		return src, true
	}
	item, ok := w.Uploads.Get(id)
	if !ok {
		return assessment.Source{}, false
	}
	return uploadSource(item), true
}

// Sources lists every document an assessment can be generated from.
func (w *Workspace) Sources() []assessment.Source {
	items := w.Uploads.List()
	out := make([]assessment.Source, 0, len(w.catalog)+len(items))
	out = append(out, w.catalog...)
	for _, item := range items {
		out = append(out, uploadSource(item))
	}
	return out
}

func uploadSource(item progress.Item) assessment.Source {
	return assessment.Source{ID: item.ID, Name: item.Label, Processed: item.Stage == progress.StageCompleted}
}

// Upload validates every file first and then submits them all, so a bad
// file rejects the whole batch.
func (w *Workspace) Upload(files []Upload) ([]progress.Item, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		if err := w.validate(f); err != nil {
			return nil, err
		}
	}
	items := make([]progress.Item, 0, len(files))
	for _, f := range files {
		item, err := w.Uploads.Submit(progress.ItemSpec{Label: strings.TrimSpace(f.Name), SizeBytes: f.SizeBytes}, nil)
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	log.Info().Str("workspace_id", w.ID).Int("files", len(items)).Msg("uploads submitted")
	return items, nil
}

func (w *Workspace) validate(f Upload) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return progress.ErrEmptyLabel
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := w.allowedExts[ext]; !ok {
		return &ExtensionError{Ext: ext}
	}
	if f.SizeBytes < 0 {
		return ErrInvalidSize
	}
	if w.maxUploadBytes > 0 && f.SizeBytes > w.maxUploadBytes {
		return newErrTooLarge(name, w.maxUploadBytes)
	}
	return nil
}

// DocType is the badge shown next to an upload.
func DocType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "PDF"
	}
	return "Document"
}

func (w *Workspace) dispose(ctx context.Context) bool {
	uploadsDone := w.Uploads.Dispose(ctx)
	assessmentsDone := w.Assessments.Dispose(ctx)
	w.Events.Close()
	return uploadsDone && assessmentsDone
}
