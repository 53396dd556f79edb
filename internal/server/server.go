package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/copyleftdev/divrect/internal/config"
	apierrors "github.com/copyleftdev/divrect/internal/errors"
	"github.com/copyleftdev/divrect/internal/logging"
	"github.com/copyleftdev/divrect/internal/optimization"
	"github.com/copyleftdev/divrect/internal/optimization/direct"
	"github.com/copyleftdev/divrect/internal/optimization/objectives"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC server for the optimization service.
// It runs DIRECT jobs on the registered objectives and provides endpoints to
// start, monitor, and cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *metrics
	jobs    *jobStore
	limiter *rate.Limiter

	// wg tracks running optimization goroutines
	wg sync.WaitGroup
}

// NewServer creates a new server instance with the given config and logger.
// Metrics are registered with reg; nil leaves them unregistered.
func NewServer(cfg *config.Config, logger Logger, reg prometheus.Registerer) *Server {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Direct.StartRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Direct.StartRate), cfg.Direct.StartBurst)
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(reg),
		jobs:    newJobStore(cfg.Direct.MaxJobs),
		limiter: limiter,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/objectives", s.handleObjectives)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// StartRequest describes an optimization job. Only Objective is required;
// everything else falls back to the objective's box or the configured
// DIRECT defaults.
type StartRequest struct {
	Objective     string      `json:"objective"`
	Dims          int         `json:"dims,omitempty"`
	Bounds        [][]float64 `json:"bounds,omitempty"`
	MaxIterations *int        `json:"max_iterations,omitempty"`
	MinRadius     float64     `json:"min_radius,omitempty"`
	Epsilon       float64     `json:"epsilon,omitempty"`
	Workers       int         `json:"workers,omitempty"`
}

// StartResponse is returned when a job is accepted.
type StartResponse struct {
	ID     string    `json:"optimization_id"`
	Status JobStatus `json:"status"`
}

// SolutionResponse is a point and its objective value.
type SolutionResponse struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// HistoryEntry summarizes one DIRECT iteration.
type HistoryEntry struct {
	Iteration   int       `json:"iteration"`
	Parameters  []float64 `json:"parameters"`
	Value       float64   `json:"value"`
	Rectangles  int       `json:"rectangles"`
	Selected    int       `json:"selected"`
	Evaluations int       `json:"evaluations"`
}

// StatusResponse reports the progress and results of a job.
type StatusResponse struct {
	ID           string            `json:"optimization_id"`
	Objective    string            `json:"objective"`
	Status       JobStatus         `json:"status"`
	Progress     float64           `json:"progress"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time,omitempty"`
	LastUpdate   string            `json:"last_update"`
	Iterations   int               `json:"iterations"`
	Evaluations  int               `json:"evaluations"`
	Converged    bool              `json:"converged"`
	BestSolution *SolutionResponse `json:"best_solution,omitempty"`
	History      []HistoryEntry    `json:"history,omitempty"`
	Error        string            `json:"error,omitempty"`
}

type idParams struct {
	ID string `json:"optimization_id"`
}

// jobConfig resolves a request against the objective registry and the
// configured defaults.
func (s *Server) jobConfig(req StartRequest) (objectives.Objective, optimization.OptimizerConfig, error) {
	var cfg optimization.OptimizerConfig

	if req.Objective == "" {
		return objectives.Objective{}, cfg, fmt.Errorf("%w: objective is required", apierrors.ErrInvalidRequest)
	}
	dims := req.Dims
	if dims == 0 {
		dims = len(req.Bounds)
	}
	if req.Bounds != nil && len(req.Bounds) != dims {
		return objectives.Objective{}, cfg, fmt.Errorf("%w: %d bounds given for %d dimensions", apierrors.ErrInvalidRequest, len(req.Bounds), dims)
	}
	obj, err := objectives.Lookup(req.Objective, dims)
	if err != nil {
		return objectives.Objective{}, cfg, fmt.Errorf("%w: %v", apierrors.ErrInvalidRequest, err)
	}

	cfg.Bounds = obj.Bounds()
	if req.Bounds != nil {
		for i, b := range req.Bounds {
			if len(b) != 2 {
				return obj, cfg, fmt.Errorf("%w: invalid bounds format, expected [[min1, max1], [min2, max2], ...]", apierrors.ErrInvalidRequest)
			}
			cfg.Bounds[i] = [2]float64{b[0], b[1]}
		}
	}
	if _, err := direct.NewNormalizer(cfg.LowerBounds(), cfg.UpperBounds()); err != nil {
		return obj, cfg, err
	}

	d := s.cfg.Direct
	cfg.MaxIterations = d.MaxIterations
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	if cfg.MaxIterations < 0 || cfg.MaxIterations > d.IterationLimit {
		return obj, cfg, optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"max_iterations must be between 0 and %d, got %d", d.IterationLimit, cfg.MaxIterations).
			WithComponent("server").
			WithOperation("start")
	}

	cfg.MinRadius = d.MinRadius
	if req.MinRadius != 0 {
		cfg.MinRadius = req.MinRadius
	}
	cfg.Epsilon = d.Epsilon
	if req.Epsilon != 0 {
		cfg.Epsilon = req.Epsilon
	}
	cfg.Workers = d.Workers
	if req.Workers != 0 {
		cfg.Workers = req.Workers
	}
	if cfg.MinRadius < 0 || cfg.Epsilon < 0 || cfg.Workers < 1 {
		return obj, cfg, optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"min_radius and epsilon must be positive and workers at least 1").
			WithComponent("server").
			WithOperation("start")
	}

	return obj, cfg, nil
}

// startOptimization validates req and launches a DIRECT job.
func (s *Server) startOptimization(req StartRequest) (*StartResponse, error) {
	obj, cfg, err := s.jobConfig(req)
	if err != nil {
		return nil, err
	}
	if !s.limiter.Allow() {
		return nil, apierrors.ErrRateLimited
	}

	id := newJobID()
	jobLogger := s.logger.WithFields(map[string]interface{}{
		"optimization_id": id,
		"objective":       obj.Name,
	})

	evaluations := s.metrics.evaluations.WithLabelValues(obj.Name)
	fn := obj.Func
	cfg.Objective = func(x []float64) (float64, error) {
		evaluations.Inc()
		return fn(x)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &OptimizationState{
		ID:            id,
		Objective:     obj.Name,
		Status:        StatusPending,
		StartTime:     now,
		LastUpdated:   now,
		MaxIterations: cfg.MaxIterations,
		Optimizer:     direct.NewOptimizer(logging.NewZapLogger(jobLogger)),
		CancelFunc:    cancel,
	}

	evicted, err := s.jobs.add(state)
	if err != nil {
		cancel()
		return nil, err
	}
	if evicted != "" {
		s.logger.Debug("Evicted finished optimization", map[string]interface{}{
			"optimization_id": evicted,
		})
	}

	jobLogger.Info("Optimization started", map[string]interface{}{
		"dims":           len(cfg.Bounds),
		"max_iterations": cfg.MaxIterations,
		"min_radius":     cfg.MinRadius,
		"workers":        cfg.Workers,
	})

	s.wg.Add(1)
	go s.runOptimization(ctx, state, cfg, jobLogger)

	return &StartResponse{ID: id, Status: StatusPending}, nil
}

// runOptimization executes the optimization process in a goroutine
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState, cfg optimization.OptimizerConfig, logger *logging.Logger) {
	defer s.wg.Done()

	var skip bool
	_ = s.jobs.update(state.ID, func(st *OptimizationState) error {
		if st.Status == StatusCancelled {
			skip = true
			return nil
		}
		st.Status = StatusRunning
		st.LastUpdated = time.Now()
		return nil
	})
	if skip {
		s.metrics.jobsTotal.WithLabelValues(state.Objective, string(StatusCancelled)).Inc()
		return
	}

	s.metrics.jobsRunning.Inc()
	start := time.Now()
	result, err := state.Optimizer.Optimize(ctx, cfg)
	elapsed := time.Since(start)
	s.metrics.jobsRunning.Dec()

	var status JobStatus
	_ = s.jobs.update(state.ID, func(st *OptimizationState) error {
		now := time.Now()
		switch {
		case st.Status == StatusCancelled || errors.Is(err, context.Canceled):
			// Keep the best point found before cancellation
			st.BestSolution = st.Optimizer.GetBestSolution()
			if st.Status != StatusCancelled {
				st.finish(StatusCancelled, now)
			}
		case err == nil:
			st.Result = result
			st.BestSolution = result.BestSolution
			st.finish(StatusCompleted, now)
		default:
			st.Error = err.Error()
			st.BestSolution = st.Optimizer.GetBestSolution()
			st.finish(StatusFailed, now)
		}
		status = st.Status
		return nil
	})
	if status == "" {
		// The job was evicted while winding down
		status = StatusCancelled
	}

	s.metrics.jobsTotal.WithLabelValues(state.Objective, string(status)).Inc()
	s.metrics.duration.WithLabelValues(state.Objective).Observe(elapsed.Seconds())

	switch status {
	case StatusCompleted:
		s.metrics.iterations.WithLabelValues(state.Objective).Observe(float64(result.Iterations))
		logger.Info("Optimization completed", map[string]interface{}{
			"iterations":  result.Iterations,
			"evaluations": result.Evaluations,
			"converged":   result.Converged,
			"best_value":  result.BestSolution.Value,
			"duration_ms": elapsed.Milliseconds(),
		})
	case StatusFailed:
		logger.Error("Optimization failed", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		logger.Info("Optimization cancelled")
	}
}

// optimizationStatus builds the status report of a job.
func (s *Server) optimizationStatus(id string) (*StatusResponse, error) {
	var resp *StatusResponse
	err := s.jobs.view(id, func(st *OptimizationState) {
		history := st.Optimizer.GetHistory()
		resp = &StatusResponse{
			ID:         st.ID,
			Objective:  st.Objective,
			Status:     st.Status,
			Progress:   st.progress(history),
			StartTime:  st.StartTime.Format(time.RFC3339),
			LastUpdate: st.LastUpdated.Format(time.RFC3339),
			Iterations: len(history),
			Error:      st.Error,
		}
		if st.EndTime != nil {
			resp.EndTime = st.EndTime.Format(time.RFC3339)
		}

		best := st.BestSolution
		if best == nil {
			best = st.Optimizer.GetBestSolution()
		}
		if best != nil {
			resp.BestSolution = &SolutionResponse{Parameters: best.Parameters, Value: best.Value}
		}

		if st.Result != nil {
			resp.Iterations = st.Result.Iterations
			resp.Evaluations = st.Result.Evaluations
			resp.Converged = st.Result.Converged
		} else if len(history) > 0 {
			resp.Evaluations = history[len(history)-1].Evaluations
		}

		if len(history) > 0 {
			resp.History = make([]HistoryEntry, len(history))
			for i, eval := range history {
				resp.History[i] = HistoryEntry{
					Iteration:   eval.Iteration,
					Parameters:  eval.Solution.Parameters,
					Value:       eval.Solution.Value,
					Rectangles:  eval.Rectangles,
					Selected:    eval.Selected,
					Evaluations: eval.Evaluations,
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// cancelOptimization cancels a pending or running job.
func (s *Server) cancelOptimization(id string) error {
	err := s.jobs.update(id, func(st *OptimizationState) error {
		if st.Status.Terminal() {
			return fmt.Errorf("%w: cannot cancel optimization with status %s", apierrors.ErrConflict, st.Status)
		}
		if st.CancelFunc != nil {
			st.CancelFunc()
		}
		st.finish(StatusCancelled, time.Now())
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// Close cancels all running optimizations and waits for them to return.
func (s *Server) Close() error {
	s.jobs.cancelAll()
	s.wg.Wait()
	return nil
}

// handleObjectives handles GET /api/v1/objectives
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, objectives.Catalog())
}

// handleOptimize handles POST /api/v1/optimize for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteJSON(w, fmt.Errorf("%w: invalid request body: %v", apierrors.ErrInvalidRequest, err))
		return
	}

	resp, err := s.startOptimization(req)
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleStatus handles GET /api/v1/status/{id} for checking optimization status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.optimizationStatus(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /api/v1/optimization/{id} for cancelling an optimization
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelOptimization(chi.URLParam(r, "id")); err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": string(StatusCancelled),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
