package orgadmin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/interfaces"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// Handlers contains HTTP handlers for organization administration
type Handlers struct {
	service   interfaces.OrgService
	jwtSecret []byte
	logger    *logger.Logger
	metrics   *monitoring.MetricsCollector
}

// NewHandlers creates new org administration HTTP handlers
func NewHandlers(service interfaces.OrgService, jwtSecret string, log *logger.Logger, metrics *monitoring.MetricsCollector) *Handlers {
	return &Handlers{
		service:   service,
		jwtSecret: []byte(jwtSecret),
		logger:    log,
		metrics:   metrics,
	}
}

// RegisterRoutes registers org administration routes with the router. The
// whole surface is restricted to global roles; branch actors never mutate
// the graph they are scoped by.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		actors := v1.Group("/actors")
		actors.Use(h.AuthMiddleware())
		actors.Use(h.RequireGlobalRole())
		{
			actors.POST("", h.RegisterActor)
			actors.GET("", h.ListActors)
			actors.GET("/:id", h.GetActor)
			actors.PUT("/:id", h.UpdateActor)
			actors.DELETE("/:id", h.DeactivateActor)
			actors.PUT("/:id/parent", h.ReassignParent)
			actors.GET("/:id/reports", h.GetDirectReports)
		}
	}
}

// RegisterActor handles actor registration
func (h *Handlers) RegisterActor(c *gin.Context) {
	var req types.ActorRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   types.ErrCodeInvalidInput,
			"message": "Invalid request format",
		})
		return
	}

	actor, err := h.service.RegisterActor(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Actor registered successfully",
		"actor":   actor,
	})
}

// GetActor retrieves actor information
func (h *Handlers) GetActor(c *gin.Context) {
	actorID := c.Param("id")

	actor, err := h.service.GetActor(c.Request.Context(), actorID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actor": actor,
	})
}

// UpdateActor applies partial updates to an actor
func (h *Handlers) UpdateActor(c *gin.Context) {
	actorID := c.Param("id")

	var updates types.ActorUpdates
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   types.ErrCodeInvalidInput,
			"message": "Invalid request format",
		})
		return
	}

	actor, err := h.service.UpdateActor(c.Request.Context(), actorID, &updates)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Actor updated successfully",
		"actor":   actor,
	})
}

// DeactivateActor marks an actor inactive
func (h *Handlers) DeactivateActor(c *gin.Context) {
	actorID := c.Param("id")

	if err := h.service.DeactivateActor(c.Request.Context(), actorID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Actor deactivated successfully",
	})
}

// ReassignParent moves an actor to a new parent in the hierarchy
func (h *Handlers) ReassignParent(c *gin.Context) {
	actorID := c.Param("id")

	var req struct {
		ParentID string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   types.ErrCodeInvalidInput,
			"message": "Invalid request format",
		})
		return
	}

	if err := h.service.ReassignParent(c.Request.Context(), actorID, req.ParentID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Parent reassigned successfully",
	})
}

// GetDirectReports lists the active actors directly beneath an actor
func (h *Handlers) GetDirectReports(c *gin.Context) {
	actorID := c.Param("id")

	reports, err := h.service.GetDirectReports(c.Request.Context(), actorID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// ListActors lists actors with filtering and pagination
func (h *Handlers) ListActors(c *gin.Context) {
	criteria := &types.ActorSearchCriteria{
		Name:     c.Query("name"),
		Role:     types.Role(c.Query("role")),
		ParentID: c.Query("parent_id"),
	}

	if active := c.Query("active"); active != "" {
		if isActive, err := strconv.ParseBool(active); err == nil {
			criteria.IsActive = &isActive
		}
	}

	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			criteria.Limit = parsed
		}
	}

	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			criteria.Offset = parsed
		}
	}

	actors, total, err := h.service.ListActors(c.Request.Context(), criteria)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actors": actors,
		"pagination": gin.H{
			"total":  total,
			"limit":  criteria.Limit,
			"offset": criteria.Offset,
		},
	})
}

// AuthMiddleware validates the bearer token and stores the actor claims in
// the request context
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   types.ErrCodeUnauthorized,
				"message": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   types.ErrCodeUnauthorized,
				"message": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := h.parseToken(parts[1])
		if err != nil {
			h.logger.Security("invalid_token", "", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			h.recordAuth("failed")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   types.ErrCodeUnauthorized,
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		h.recordAuth("success")
		c.Set("actor_claims", claims)
		c.Next()
	}
}

// RequireGlobalRole rejects requests from actors without organization-wide
// oversight
func (h *Handlers) RequireGlobalRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := h.claimsFromContext(c)
		if claims == nil || !access.IsGlobalRole(claims.Role) {
			actorID := ""
			if claims != nil {
				actorID = claims.ActorID
			}
			h.logger.Security("org_mutation_denied", actorID, map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
			c.JSON(http.StatusForbidden, gin.H{
				"error":   types.ErrCodeForbidden,
				"message": "Organization administration requires a global role",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

type tokenClaims struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handlers) parseToken(tokenString string) (*types.ActorClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token has expired")
	}
	if claims.ActorID == "" {
		return nil, fmt.Errorf("token missing actor identity")
	}

	return &types.ActorClaims{
		ActorID: claims.ActorID,
		Name:    claims.Name,
		Role:    types.Role(claims.Role),
	}, nil
}

func (h *Handlers) claimsFromContext(c *gin.Context) *types.ActorClaims {
	value, exists := c.Get("actor_claims")
	if !exists {
		return nil
	}
	claims, ok := value.(*types.ActorClaims)
	if !ok {
		return nil
	}
	return claims
}

func (h *Handlers) recordAuth(status string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordAuthAttempt("jwt", status)
}

func (h *Handlers) handleError(c *gin.Context, err error) {
	portalErr, ok := err.(*types.PortalError)
	if !ok {
		h.logger.Error("Internal server error:", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   types.ErrCodeInternalError,
			"message": "An internal error occurred",
		})
		return
	}

	c.JSON(statusForErrorType(portalErr.Type), gin.H{
		"error":   portalErr.Code,
		"message": portalErr.Message,
		"details": portalErr.Details,
	})
}

func statusForErrorType(errorType types.ErrorType) int {
	switch errorType {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case types.ErrorTypeAuthorization:
		return http.StatusForbidden
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeIntegrity:
		return http.StatusUnprocessableEntity
	case types.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
