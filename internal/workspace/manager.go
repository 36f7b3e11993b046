package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"studydesk/internal/assessment"
	"studydesk/internal/export"
	"studydesk/internal/notify"
	"studydesk/internal/progress"
)

const defaultMaxWorkspaces = 16

// Options configures every workspace a Manager creates.
type Options struct {
	UploadPolicy      progress.Policy
	GenerationPolicy  progress.Policy
	GenerationDelay   time.Duration
	MaxActiveUploads  int
	MaxWorkspaces     int
	AllowedExtensions []string
	MaxUploadBytes    int64
	Catalog           assessment.Catalog
	DataDir           string
}

// DefaultOptions mirrors the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		UploadPolicy:      progress.DefaultUploadPolicy(),
		GenerationPolicy:  progress.DefaultGenerationPolicy(),
		GenerationDelay:   assessment.DefaultWorkDelay,
		MaxWorkspaces:     defaultMaxWorkspaces,
		AllowedExtensions: []string{".pdf", ".doc", ".docx", ".txt"},
		MaxUploadBytes:    10 << 20,
		Catalog:           assessment.DefaultCatalog(),
		DataDir:           "data",
	}
}

// Manager owns the open workspaces.
type Manager struct {
	mu          sync.RWMutex
	workspaces  map[string]*Workspace
	order       []string
	opts        Options
	allowedExts map[string]struct{}
	exports     *export.Store
	baseCtx     context.Context
}

func NewManager(opts Options) *Manager {
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	if opts.MaxWorkspaces <= 0 {
		opts.MaxWorkspaces = defaultMaxWorkspaces
	}
	return &Manager{
		workspaces:  make(map[string]*Workspace),
		opts:        opts,
		allowedExts: allowed,
		exports:     export.NewStore(opts.DataDir),
		baseCtx:     context.Background(),
	}
}

// SetBaseContext sets the parent context of every workspace created later.
// Intended to be set at process startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// Catalog returns the shared document library.
func (m *Manager) Catalog() assessment.Catalog {
	return append(assessment.Catalog(nil), m.opts.Catalog...)
}

// IsBusy reports whether no further workspace can be opened.
func (m *Manager) IsBusy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces) >= m.opts.MaxWorkspaces
}

// Create opens a workspace with empty upload and assessment boards.
func (m *Manager) Create() (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.workspaces) >= m.opts.MaxWorkspaces {
		return nil, ErrTooManyWorkspaces
	}

	ws := &Workspace{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now(),
		Events:         notify.NewHub(),
		catalog:        m.opts.Catalog,
		allowedExts:    m.allowedExts,
		maxUploadBytes: m.opts.MaxUploadBytes,
	}
	uploads, err := progress.NewBoard(progress.Options{
		Policy:      m.opts.UploadPolicy,
		MaxActive:   m.opts.MaxActiveUploads,
		Listener:    ws.Events.Listener(notify.KindUpload),
		BaseContext: m.baseCtx,
		Name:        "uploads",
	})
	if err != nil {
		return nil, err
	}
	ws.Uploads = uploads
	generator, err := assessment.NewGenerator(assessment.Options{
		Policy:      m.opts.GenerationPolicy,
		WorkDelay:   m.opts.GenerationDelay,
		Sources:     ws,
		Listener:    ws.Events.Listener(notify.KindAssessment),
		BaseContext: m.baseCtx,
	})
	if err != nil {
		uploads.Dispose(context.Background())
		return nil, err
	}
	ws.Assessments = generator

	m.workspaces[ws.ID] = ws
	m.order = append(m.order, ws.ID)
	log.Info().Str("workspace_id", ws.ID).Msg("workspace created")
	return ws, nil
}

// Get returns an open workspace.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.workspaces[id]
	return ws, ok
}

// List returns open workspaces, oldest first.
func (m *Manager) List() []*Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workspace, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.workspaces[id])
	}
	return out
}

// Dispose closes a workspace: its tickers stop, its items and exported
// bundles are dropped and its event subscribers are disconnected.
func (m *Manager) Dispose(ctx context.Context, id string) error {
	_, err := m.dispose(ctx, id)
	return err
}

func (m *Manager) dispose(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	ws, ok := m.workspaces[id]
	if ok {
		delete(m.workspaces, id)
		for i, candidate := range m.order {
			if candidate == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return false, ErrNotFound
	}

	clean := ws.dispose(ctx)
	if !clean {
		log.Warn().Str("workspace_id", id).Msg("workspace workers did not finish before timeout")
	}
	if err := m.exports.RemoveWorkspace(id); err != nil {
		log.Warn().Str("workspace_id", id).Err(err).Msg("remove exports failed")
	}
	log.Info().Str("workspace_id", id).Msg("workspace disposed")
	return clean, nil
}

// DisposeAll closes every workspace concurrently. It returns false if some
// workers were still running when ctx ended.
func (m *Manager) DisposeAll(ctx context.Context) bool {
	var g errgroup.Group
	var dirty atomic.Bool
	for _, ws := range m.List() {
		ws := ws
		g.Go(func() error {
			clean, err := m.dispose(ctx, ws.ID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if err == nil && !clean {
				dirty.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("dispose workspaces")
		return false
	}
	return !dirty.Load()
}

// Export writes the bundle of a completed assessment and returns its path
// and download name.
func (m *Manager) Export(ws *Workspace, assessmentID string) (string, string, error) {
	a, err := ws.Assessments.Get(assessmentID)
	if err != nil {
		return "", "", err
	}
	path, err := m.exports.Write(ws.ID, a)
	if err != nil {
		return "", "", err
	}
	return path, export.Filename(a), nil
}
