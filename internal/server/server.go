package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/history"
	"github.com/gofrs/flock"
	"github.com/labstack/echo/v5"
)

// DefaultArchiveTTL is how long a finished archive waits to be collected.
const DefaultArchiveTTL = 15 * time.Minute

const shutdownTimeout = 10 * time.Second

// ErrAlreadyRunning is returned by Run when another server holds the lock.
var ErrAlreadyRunning = errors.New("another audiobatch server is already running")

// Runner runs a batch. *download.Manager implements it.
type Runner interface {
	Run(ctx context.Context, refs []string, listener download.Listener) (*download.Batch, error)
}

// HistoryLister lists recorded batches. *history.Store implements it.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Batch, error)
}

// Options configures a Server.
type Options struct {
	History    HistoryLister
	Logger     *slog.Logger
	ArchiveTTL time.Duration

	// LockPath, when set, is locked for the lifetime of Run so only one
	// server shares a work directory.
	LockPath string
}

type pendingArchive struct {
	batch   *download.Batch
	expires time.Time
}

// Server exposes batches over HTTP. Archives of finished batches are kept
// until they are downloaded once or their TTL passes.
type Server struct {
	echo    *echo.Echo
	runner  Runner
	history HistoryLister
	logger  *slog.Logger
	ttl     time.Duration
	lock    *flock.Flock
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingArchive
}

// New creates a Server with its routes registered.
func New(runner Runner, opts Options) *Server {
	s := &Server{
		echo:    echo.New(),
		runner:  runner,
		history: opts.History,
		logger:  opts.Logger,
		ttl:     opts.ArchiveTTL,
		now:     time.Now,
		pending: make(map[string]*pendingArchive),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.ttl <= 0 {
		s.ttl = DefaultArchiveTTL
	}
	if opts.LockPath != "" {
		s.lock = flock.New(opts.LockPath)
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully and
// releases every uncollected archive.
func (s *Server) Run(ctx context.Context, addr string) error {
	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, s.lock.Path())
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn("failed to release server lock", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.janitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.releaseAll()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.releaseAll()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweepInterval is half the TTL, kept between a second and a minute.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(min(ttl/2, time.Minute), time.Second)
}

// janitor drops archives nobody collected in time.
func (s *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval(s.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep releases expired archives and returns how many it dropped.
func (s *Server) sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []*pendingArchive
	for id, p := range s.pending {
		if now.After(p.expires) {
			expired = append(expired, p)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, p := range expired {
		s.logger.Info("archive expired", "batch", p.batch.ID)
		s.release(p.batch)
	}
	return len(expired)
}

// hold keeps b for collection and returns its expiry.
func (s *Server) hold(b *download.Batch) time.Time {
	expires := s.now().Add(s.ttl)
	s.mu.Lock()
	s.pending[b.ID] = &pendingArchive{batch: b, expires: expires}
	s.mu.Unlock()
	return expires
}

// take removes and returns a pending archive.
func (s *Server) take(id string) (*download.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok {
		return nil, false
	}
	delete(s.pending, id)
	return p.batch, true
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingArchive)
	s.mu.Unlock()

	for _, p := range pending {
		s.release(p.batch)
	}
}

func (s *Server) release(b *download.Batch) {
	if err := b.Release(); err != nil {
		s.logger.Warn("failed to release batch workspace", "batch", b.ID, "error", err)
	}
}

// pendingCount reports how many archives wait for collection.
func (s *Server) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func archiveURL(c *echo.Context, id string) string {
	return fmt.Sprintf("%s://%s/api/batches/%s/archive", c.Scheme(), c.Request().Host, id)
}

func contentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(name, `"`, "'"))
}
