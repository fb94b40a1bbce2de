package access

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/config"
	"github.com/mwpdesign/PP2-sub001/pkg/interfaces"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
	"github.com/mwpdesign/PP2-sub001/pkg/repository"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// Service is the read-path deployable. It owns the visibility filter, the
// read-only view enforcer, the downline directory and the audit pipeline,
// and serves them over HTTP to the portal.
type Service struct {
	config         *config.Config
	router         *mux.Router
	server         *http.Server
	logger         *logger.Logger
	metrics        *monitoring.MetricsCollector
	health         *monitoring.HealthManager
	monitoring     *monitoring.MonitoringMiddleware
	tokenValidator *TokenValidator

	actors  access.ActorSource
	records interfaces.RecordRepository

	engine    access.Engine
	directory *OrgDirectory
	monitor   *AuditMonitor
	alerts    *AlertManager
}

// NewService wires the access service together. The Redis client, metrics
// collector, health manager and monitoring middleware are all optional;
// absent ones degrade to local-only caching and plain serving.
func NewService(cfg *config.Config, db *sql.DB, redisClient *redis.Client, log *logger.Logger, metrics *monitoring.MetricsCollector, health *monitoring.HealthManager, monMw *monitoring.MonitoringMiddleware) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT secret key is required")
	}

	actorRepo := repository.NewActorRepository(db, log)
	recordRepo := repository.NewRecordRepository(db, log)
	auditRepo := repository.NewAuditRepository(db, log)

	var remote *DownlineCache
	if redisClient != nil {
		remote = NewDownlineCache(redisClient, time.Duration(cfg.Directory.CacheTTL)*time.Second, log)
	}

	directory := NewOrgDirectory(
		actorRepo,
		remote,
		time.Duration(cfg.Directory.CacheTTL)*time.Second,
		time.Duration(cfg.Directory.ResolveTimeout)*time.Second,
		log,
		metrics,
	)

	alerts := NewAlertManager(cfg.Alerts.BufferSize, log, metrics)
	if cfg.Alerts.WebhookURL != "" {
		alerts.RegisterChannel(NewWebhookChannel(cfg.Alerts.WebhookURL, true))
	}
	if cfg.Alerts.Kafka.Enabled {
		alerts.RegisterChannel(NewKafkaChannel(cfg.Alerts.Kafka.Brokers, cfg.Alerts.Kafka.Topic, true))
	}

	monitor := NewAuditMonitor(
		auditRepo,
		alerts,
		cfg.Audit.BufferSize,
		time.Duration(cfg.Audit.RetryDelayMs)*time.Millisecond,
		log,
		metrics,
	)

	filter := NewFilter(directory, log, metrics)
	enforcer := NewEnforcer(monitor, log, metrics)

	service := &Service{
		config:         cfg,
		router:         mux.NewRouter(),
		logger:         log,
		metrics:        metrics,
		health:         health,
		monitoring:     monMw,
		tokenValidator: NewTokenValidator(cfg.JWT.SecretKey),
		actors:         actorRepo,
		records:        recordRepo,
		engine:         NewEngine(directory, filter, enforcer, auditRepo, log),
		directory:      directory,
		monitor:        monitor,
		alerts:         alerts,
	}

	service.setupMiddleware()
	service.setupRoutes()

	service.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      service.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return service, nil
}

func (s *Service) setupMiddleware() {
	s.router.Use(s.securityHeadersMiddleware)
	if s.monitoring != nil {
		s.router.Use(s.monitoring.HTTPMiddleware)
	} else if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}
	s.router.Use(s.authMiddleware)
}

func (s *Service) setupRoutes() {
	if s.health != nil {
		s.router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/records", s.handleListRecords).Methods("GET")
	api.HandleFunc("/access/filter", s.handleFilterRecords).Methods("POST")
	api.HandleFunc("/access/grants", s.handleActivateView).Methods("POST")
	api.HandleFunc("/access/mode", s.handleEvaluateMode).Methods("GET")
	api.HandleFunc("/access/downline", s.handleGetDownline).Methods("GET")
	api.HandleFunc("/access/directory/stats", s.handleDirectoryStats).Methods("GET")
	api.HandleFunc("/access/directory/invalidate", s.handleInvalidateDirectory).Methods("POST")
	api.HandleFunc("/audit", s.handleQueryAudit).Methods("GET")
}

// Start launches the background workers and serves HTTP until Stop is
// called. An empty addr keeps the address built from configuration.
func (s *Service) Start(addr string) error {
	if err := s.alerts.Start(); err != nil {
		return err
	}
	if err := s.monitor.Start(); err != nil {
		return err
	}

	if addr != "" {
		s.server.Addr = addr
	}
	s.logger.Info("Access service listening on", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("access service failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully, then drains the audit and alert
// workers. The audit monitor stops before the alert manager so escalations
// raised during the drain still have a live channel.
func (s *Service) Stop() error {
	s.logger.Info("Shutting down access service")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	var shutdownErr error
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed:", err)
		shutdownErr = err
	}

	if err := s.monitor.Stop(); err != nil {
		s.logger.Error("Audit monitor shutdown failed:", err)
	}
	if err := s.alerts.Stop(); err != nil {
		s.logger.Error("Alert manager shutdown failed:", err)
	}

	s.logger.Info("Access service stopped")
	return shutdownErr
}

// ListVisibleRecords loads records matching the business criteria, applies
// the visibility filter for the authenticated actor and returns one page of
// the visible remainder. Pagination totals count only visible records, so
// callers can never infer how many records were withheld.
func (s *Service) ListVisibleRecords(ctx context.Context, claims *types.ActorClaims, criteria *types.RecordSearchCriteria, limit, offset int) ([]*types.WorkflowRecord, *types.PaginationMeta, error) {
	if limit <= 0 {
		limit = access.DefaultRecordPageSize
	}
	if limit > access.MaxRecordPageSize {
		limit = access.MaxRecordPageSize
	}
	if offset < 0 {
		offset = 0
	}

	actor := s.resolveActor(ctx, claims)
	if actor == nil {
		return []*types.WorkflowRecord{}, &types.PaginationMeta{Limit: limit, Offset: offset}, nil
	}

	records, err := s.records.List(ctx, criteria, access.DefaultRecordFetchLimit)
	if err != nil {
		return nil, nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to load records", err)
	}

	result := s.engine.FilterVisibleRecords(ctx, actor, records)

	total := len(result.Visible)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	meta := &types.PaginationMeta{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	}
	return result.Visible[start:end], meta, nil
}

// FilterRecords re-checks a caller-supplied record collection for the
// authenticated actor. An unresolvable actor yields an empty result.
func (s *Service) FilterRecords(ctx context.Context, claims *types.ActorClaims, records []*types.WorkflowRecord) *access.FilterResult {
	actor := s.resolveActor(ctx, claims)
	if actor == nil {
		return &access.FilterResult{
			Visible: []*types.WorkflowRecord{},
			Dropped: len(records),
		}
	}
	return s.engine.FilterVisibleRecords(ctx, actor, records)
}

// ActivateView computes a frozen access-mode grant for one view activation
func (s *Service) ActivateView(ctx context.Context, claims *types.ActorClaims, req *access.GrantRequest) (*access.ViewGrant, error) {
	if req == nil || req.Resource == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "View resource is required", nil)
	}
	if req.TargetRole == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Target role is required", nil)
	}

	actor := s.resolveActor(ctx, claims)
	if actor == nil {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, "Actor is not recognized in the organizational directory")
	}

	return s.engine.ActivateView(ctx, actor, req), nil
}

// EvaluateMode answers the access-mode question for a role pair
func (s *Service) EvaluateMode(actorRole, targetRole types.Role) access.ViewPermissionMode {
	return s.engine.EvaluateMode(actorRole, targetRole)
}

// GetDownline resolves the doctor IDs beneath an actor
func (s *Service) GetDownline(ctx context.Context, actorID string) ([]string, error) {
	doctorIDs, err := s.engine.ResolveDownline(ctx, actorID)
	if err != nil {
		return nil, mapAccessError(err)
	}
	return doctorIDs, nil
}

// InvalidateDirectory discards all cached downline resolutions
func (s *Service) InvalidateDirectory(ctx context.Context) error {
	if err := s.directory.Invalidate(ctx); err != nil {
		return types.NewInternalError(types.ErrCodeExternalError, "Directory cache invalidation failed", err)
	}
	return nil
}

// QueryAuditTrail reads back audit entries matching the filter
func (s *Service) QueryAuditTrail(ctx context.Context, filter *access.AuditFilter) ([]*access.AuditEntry, error) {
	entries, err := s.engine.QueryAuditTrail(ctx, filter)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "Failed to query audit trail", err)
	}
	return entries, nil
}

// resolveActor loads the authoritative directory entry for the
// authenticated claims. Missing and deactivated actors resolve to nil; the
// caller treats that as an empty visibility scope.
func (s *Service) resolveActor(ctx context.Context, claims *types.ActorClaims) *types.Actor {
	actor, err := s.actors.GetActor(ctx, claims.ActorID)
	if err != nil {
		s.logger.Security("actor_resolution_failed", claims.ActorID, map[string]interface{}{
			"token_role": string(claims.Role),
			"error":      err.Error(),
		})
		return nil
	}
	if !actor.IsActive {
		s.logger.Security("inactive_actor_denied", claims.ActorID, map[string]interface{}{
			"role": string(actor.Role),
		})
		return nil
	}
	return actor
}

// mapAccessError translates engine errors into the portal error model
func mapAccessError(err error) error {
	accessErr, ok := access.GetAccessError(err)
	if !ok {
		return types.NewInternalError(types.ErrCodeInternalError, "Access engine failure", err)
	}

	switch accessErr.Type {
	case access.ErrorTypeHierarchyCycle:
		return types.NewIntegrityError(types.ErrCodeIntegrityViolation, accessErr.Message, map[string]interface{}{
			"actor_id": accessErr.ActorID,
		})
	case access.ErrorTypeUnknownActor:
		return types.NewNotFoundError(types.ErrCodeNotFound, accessErr.Message)
	case access.ErrorTypeResolutionTimeout:
		return types.NewInternalError(types.ErrCodeTimeout, accessErr.Message, accessErr)
	case access.ErrorTypeDirectoryFailure:
		return types.NewInternalError(types.ErrCodeExternalError, accessErr.Message, accessErr)
	default:
		return types.NewInternalError(types.ErrCodeInternalError, accessErr.Message, accessErr)
	}
}
