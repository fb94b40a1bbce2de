package orgadmin

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/config"
	"github.com/mwpdesign/PP2-sub001/pkg/interfaces"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
	"github.com/mwpdesign/PP2-sub001/pkg/repository"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// DirectoryInvalidator advances the shared downline cache generation after a
// hierarchy mutation. Reader instances pick the change up on their next
// remote lookup; their local caches refresh within the cache TTL.
type DirectoryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service is the write path for the organizational graph. Every mutation
// that can change a downline invalidates the shared directory cache.
type Service struct {
	config      *config.Config
	router      *gin.Engine
	server      *http.Server
	logger      *logger.Logger
	metrics     *monitoring.MetricsCollector
	health      *monitoring.HealthManager
	repo        interfaces.ActorRepository
	invalidator DirectoryInvalidator
}

// NewService wires the org service together. The invalidator, metrics
// collector and health manager are optional; without an invalidator,
// downline staleness after mutations is bounded by the reader cache TTL.
func NewService(cfg *config.Config, db *sql.DB, invalidator DirectoryInvalidator, log *logger.Logger, metrics *monitoring.MetricsCollector, health *monitoring.HealthManager) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT secret key is required")
	}

	service := &Service{
		config:      cfg,
		logger:      log,
		metrics:     metrics,
		health:      health,
		repo:        repository.NewActorRepository(db, log),
		invalidator: invalidator,
	}

	service.setupRouter()

	service.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      service.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return service, nil
}

func (s *Service) setupRouter() {
	if s.config.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestTelemetry())

	if s.health != nil {
		router.GET("/health", gin.WrapF(s.health.HTTPHandler()))
	}
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	handlers := NewHandlers(s, s.config.JWT.SecretKey, s.logger, s.metrics)
	handlers.RegisterRoutes(router)

	s.router = router
}

// requestTelemetry records request metrics and the structured access log
func (s *Service) requestTelemetry() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), duration)
		}
		s.logger.HTTPRequest(c.Request.Context(), c.Request.Method, path, c.Request.UserAgent(), c.ClientIP(), c.Writer.Status(), duration.Milliseconds(), nil)
	}
}

// Start serves HTTP until Stop is called. An empty addr keeps the address
// built from configuration.
func (s *Service) Start(addr string) error {
	if addr != "" {
		s.server.Addr = addr
	}
	s.logger.Info("Org service listening on", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("org service failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *Service) Stop() error {
	s.logger.Info("Shutting down org service")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed:", err)
		return err
	}

	s.logger.Info("Org service stopped")
	return nil
}

// RegisterActor creates a new actor in the organizational directory. The
// parent, when given, must exist, be active and be strictly senior to the
// new actor.
func (s *Service) RegisterActor(ctx context.Context, req *types.ActorRegistrationRequest) (*types.Actor, error) {
	if req == nil || req.Name == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Actor name is required", nil)
	}
	if req.Email == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Actor email is required", nil)
	}
	if !access.KnownRole(req.Role) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Unknown actor role", map[string]interface{}{
			"role": string(req.Role),
		})
	}

	if existing, _ := s.repo.GetByEmail(ctx, req.Email); existing != nil {
		return nil, types.NewConflictError(types.ErrCodeConflict, "An actor with this email already exists", nil)
	}

	if req.ParentID != "" {
		if err := s.validateParent(ctx, req.ParentID, req.Role); err != nil {
			return nil, err
		}
	}

	actor := &types.Actor{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		ParentID: req.ParentID,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, actor); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to register actor", err)
	}

	s.invalidateDirectory(ctx)
	s.logger.Audit(actor.ID, "actor_registered", "org/actors", true, map[string]interface{}{
		"role":      string(actor.Role),
		"parent_id": actor.ParentID,
	})

	return actor, nil
}

// GetActor retrieves a single actor by ID
func (s *Service) GetActor(ctx context.Context, actorID string) (*types.Actor, error) {
	return s.repo.GetByID(ctx, actorID)
}

// UpdateActor applies partial updates and returns the refreshed actor
func (s *Service) UpdateActor(ctx context.Context, actorID string, updates *types.ActorUpdates) (*types.Actor, error) {
	if updates == nil || (updates.Name == "" && updates.Email == "" && updates.IsActive == nil) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "No updates provided", nil)
	}

	if updates.Email != "" {
		if existing, _ := s.repo.GetByEmail(ctx, updates.Email); existing != nil && existing.ID != actorID {
			return nil, types.NewConflictError(types.ErrCodeConflict, "An actor with this email already exists", nil)
		}
	}

	if err := s.repo.Update(ctx, actorID, updates); err != nil {
		return nil, err
	}

	// Activation changes alter which branches traversal can reach
	if updates.IsActive != nil {
		s.invalidateDirectory(ctx)
	}

	s.logger.Audit(actorID, "actor_updated", "org/actors", true, nil)
	return s.repo.GetByID(ctx, actorID)
}

// DeactivateActor marks an actor inactive. Deactivated actors drop out of
// downline traversal and lose all record visibility on the read path.
func (s *Service) DeactivateActor(ctx context.Context, actorID string) error {
	if err := s.repo.Deactivate(ctx, actorID); err != nil {
		return err
	}

	s.invalidateDirectory(ctx)
	s.logger.Audit(actorID, "actor_deactivated", "org/actors", true, nil)
	return nil
}

// ReassignParent moves an actor to a new parent. An empty newParentID
// detaches the actor from the hierarchy. Assignments that would place an
// actor inside its own subtree are rejected.
func (s *Service) ReassignParent(ctx context.Context, actorID, newParentID string) error {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return err
	}

	if newParentID == "" {
		if err := s.repo.SetParent(ctx, actorID, nil); err != nil {
			return err
		}
		s.invalidateDirectory(ctx)
		s.logger.Audit(actorID, "parent_detached", "org/actors", true, map[string]interface{}{
			"old_parent_id": actor.ParentID,
		})
		return nil
	}

	if newParentID == actorID {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Actor cannot be its own parent", nil)
	}

	if err := s.validateParent(ctx, newParentID, actor.Role); err != nil {
		return err
	}

	isDescendant, err := s.repo.IsDescendant(ctx, actorID, newParentID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "Failed to check hierarchy for cycles", err)
	}
	if isDescendant {
		return types.NewConflictError(types.ErrCodeConflict, "Reassignment would create a cycle in the hierarchy", map[string]interface{}{
			"actor_id":      actorID,
			"new_parent_id": newParentID,
		})
	}

	if err := s.repo.SetParent(ctx, actorID, &newParentID); err != nil {
		return err
	}

	s.invalidateDirectory(ctx)
	s.logger.Audit(actorID, "parent_reassigned", "org/actors", true, map[string]interface{}{
		"old_parent_id": actor.ParentID,
		"new_parent_id": newParentID,
	})
	return nil
}

// GetDirectReports lists the active actors directly beneath a parent
func (s *Service) GetDirectReports(ctx context.Context, actorID string) ([]*types.Actor, error) {
	if _, err := s.repo.GetByID(ctx, actorID); err != nil {
		return nil, err
	}
	return s.repo.GetChildren(ctx, actorID)
}

// ListActors searches the directory and returns one page plus the total
// match count
func (s *Service) ListActors(ctx context.Context, criteria *types.ActorSearchCriteria) ([]*types.Actor, int, error) {
	if criteria == nil {
		criteria = &types.ActorSearchCriteria{}
	}
	if criteria.Limit <= 0 {
		criteria.Limit = 50
	}
	if criteria.Limit > 200 {
		criteria.Limit = 200
	}
	if criteria.Offset < 0 {
		criteria.Offset = 0
	}
	return s.repo.List(ctx, criteria)
}

func (s *Service) validateParent(ctx context.Context, parentID string, childRole types.Role) error {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Parent actor does not exist", map[string]interface{}{
			"parent_id": parentID,
		})
	}
	if !parent.IsActive {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Parent actor is deactivated", map[string]interface{}{
			"parent_id": parentID,
		})
	}
	if !access.IsSenior(parent.Role, childRole) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Parent must be senior to the actor", map[string]interface{}{
			"parent_role": string(parent.Role),
			"actor_role":  string(childRole),
		})
	}
	return nil
}

func (s *Service) invalidateDirectory(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Error("Directory cache invalidation failed:", err)
		if s.metrics != nil {
			s.metrics.RecordSystemError("directory_invalidation", "org-service")
		}
	}
}
