package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/focal-ai/focal/internal/api"
	"github.com/focal-ai/focal/internal/app/debate"
	"github.com/focal-ai/focal/internal/app/ledger"
	"github.com/focal-ai/focal/internal/app/refine"
	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/identity"
	"github.com/focal-ai/focal/internal/infra/llm"
	"github.com/focal-ai/focal/internal/infra/observability"
	"github.com/focal-ai/focal/internal/infra/sqlite"
)

// Daemon holds the process-wide services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Ledger *ledger.Ledger
	Refine *refine.Service
	Tracer *observability.Tracer
}

// OpenStore opens the database and ledger only. Used by offline commands.
func OpenStore(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(cfg.Database.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Daemon{
		Config: cfg,
		DB:     db,
		Ledger: ledger.New(db, ledger.Config{InitialGrant: cfg.Credits.InitialGrant}),
	}, nil
}

// New opens the store and builds the refinement pipeline.
func New(cfg Config) (*Daemon, error) {
	d, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Generator.APIKey == "" {
		log.Printf("[daemon] WARNING: no generation API key set (FOCAL_LLM_API_KEY); refinements will fail upstream")
	}

	client := llm.New(llm.Config{
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		Temperature: float32(cfg.Generator.Temperature),
		MaxTokens:   cfg.Generator.MaxTokens,
		Timeout:     cfg.CallTimeout(),
	})
	genCfg := debate.Config{CallTimeout: cfg.CallTimeout()}
	orch := debate.NewOrchestrator(debate.NewGenerator(client, genCfg), debate.OrchestratorConfig{
		Rounds:     cfg.Debate.Rounds,
		MaxWorkers: cfg.Debate.MaxWorkers,
	})
	agg := debate.NewAggregator(client, debate.HeaderParser{}, genCfg)

	d.Tracer = observability.NewTracer(observability.DefaultTracerConfig())
	d.Refine = refine.New(d.Ledger, d.DB, orch, agg, d.Tracer, refine.Config{
		Cost:   cfg.Credits.RefineCost,
		Rounds: cfg.Debate.Rounds,
	})
	return d, nil
}

// NewVerifier builds the token verifier selected by auth.mode.
func NewVerifier(cfg AuthConfig) (domain.TokenVerifier, error) {
	switch cfg.Mode {
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, errors.New("auth.mode=jwt requires FOCAL_JWT_SECRET")
		}
		return identity.NewJWTVerifier(cfg.JWTSecret), nil
	case "google":
		if cfg.GoogleClientID == "" {
			log.Printf("[daemon] WARNING: no Google client ID set; token audience is not checked")
		}
		return identity.NewGoogleVerifier(cfg.GoogleClientID, 10*time.Second), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

// Handler returns the configured HTTP handler.
func (d *Daemon) Handler() (http.Handler, error) {
	verifier, err := NewVerifier(d.Config.Auth)
	if err != nil {
		return nil, err
	}
	srv := api.NewServer(d.Ledger, d.DB, d.Refine, verifier)
	srv.SetCORSOrigins(d.Config.API.CORSOrigins)
	srv.SetRequestTimeout(d.Config.RequestTimeout())
	if d.Config.Metrics.Enabled {
		srv.EnableMetrics()
	}
	return srv.Handler(), nil
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (d *Daemon) Serve(ctx context.Context) error {
	h, err := d.Handler()
	if err != nil {
		return err
	}
	hs := &http.Server{
		Addr:              d.Config.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s (db=%s)", hs.Addr, d.DB.Path())
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.Config.RequestTimeout())
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

// Close releases the database.
func (d *Daemon) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
