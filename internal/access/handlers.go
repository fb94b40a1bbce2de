package access

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// claimsFromContext extracts the authenticated actor claims placed in the
// request context by the auth middleware
func claimsFromContext(ctx context.Context) (*types.ActorClaims, bool) {
	claims, ok := ctx.Value("actor_claims").(*types.ActorClaims)
	return claims, ok
}

// handleListRecords serves the filtered record listing. Business narrowing
// from the query string runs in the database; visibility always runs here,
// after the fetch, so no query path can bypass it.
func (s *Service) handleListRecords(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	query := r.URL.Query()
	criteria := &types.RecordSearchCriteria{
		RecordType: types.RecordType(query.Get("record_type")),
		Status:     types.RecordStatus(query.Get("status")),
		Search:     query.Get("search"),
		SortBy:     query.Get("sort_by"),
		SortOrder:  query.Get("sort_order"),
	}
	limit := parseQueryInt(query.Get("limit"), access.DefaultRecordPageSize)
	offset := parseQueryInt(query.Get("offset"), 0)

	records, meta, err := s.ListVisibleRecords(r.Context(), claims, criteria, limit, offset)
	if err != nil {
		s.writePortalError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"records":    records,
		"pagination": meta,
	})
}

// handleFilterRecords applies the visibility filter to a record collection
// supplied by the caller. Used by portal pages that already hold records
// from an earlier fetch and need them re-checked for the current actor.
func (s *Service) handleFilterRecords(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var payload struct {
		Records []*types.WorkflowRecord `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := s.FilterRecords(r.Context(), claims, payload.Records)
	s.writeJSONResponse(w, http.StatusOK, result)
}

// handleActivateView computes a frozen access-mode grant for one view
func (s *Service) handleActivateView(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req access.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	grant, err := s.ActivateView(r.Context(), claims, &req)
	if err != nil {
		s.writePortalError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, grant)
}

// handleEvaluateMode answers the mode question without activating a view,
// used by navigation chrome deciding whether to render edit affordances
func (s *Service) handleEvaluateMode(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	targetRole := types.Role(r.URL.Query().Get("target_role"))
	if targetRole == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "target_role query parameter is required")
		return
	}

	mode := s.EvaluateMode(claims.Role, targetRole)
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"mode":        mode,
		"actor_role":  claims.Role,
		"target_role": targetRole,
	})
}

// handleGetDownline returns the doctor IDs visible to an actor. Actors may
// query their own downline; inspecting another actor's requires a global
// role.
func (s *Service) handleGetDownline(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	actorID := r.URL.Query().Get("actor_id")
	if actorID == "" {
		actorID = claims.ActorID
	}
	if actorID != claims.ActorID && !access.IsGlobalRole(claims.Role) {
		s.logger.Security("downline_inspection_denied", claims.ActorID, map[string]interface{}{
			"requested_actor": actorID,
		})
		s.writeErrorResponse(w, http.StatusForbidden, "Cannot inspect another actor's downline")
		return
	}

	doctorIDs, err := s.GetDownline(r.Context(), actorID)
	if err != nil {
		s.writePortalError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"actor_id":   actorID,
		"doctor_ids": doctorIDs,
		"count":      len(doctorIDs),
	})
}

// handleDirectoryStats exposes downline cache effectiveness counters
func (s *Service) handleDirectoryStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !access.IsGlobalRole(claims.Role) {
		s.writeErrorResponse(w, http.StatusForbidden, "Administrator role required")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, s.directory.Stats())
}

// handleInvalidateDirectory discards cached downlines so hierarchy changes
// take effect immediately
func (s *Service) handleInvalidateDirectory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !access.IsGlobalRole(claims.Role) {
		s.logger.Security("directory_invalidate_denied", claims.ActorID, map[string]interface{}{
			"role": string(claims.Role),
		})
		s.writeErrorResponse(w, http.StatusForbidden, "Administrator role required")
		return
	}

	if err := s.InvalidateDirectory(r.Context()); err != nil {
		s.writePortalError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":         "invalidated",
		"invalidated_at": time.Now().UTC(),
	})
}

// handleQueryAudit serves the append-only audit trail to administrators
func (s *Service) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !access.IsGlobalRole(claims.Role) {
		s.writeErrorResponse(w, http.StatusForbidden, "Administrator role required")
		return
	}

	query := r.URL.Query()
	filter := &access.AuditFilter{
		ActorID:    query.Get("actor_id"),
		Action:     query.Get("action"),
		Resource:   query.Get("resource"),
		TargetRole: query.Get("target_role"),
		Limit:      parseQueryInt(query.Get("limit"), access.DefaultAuditQueryLimit),
		Offset:     parseQueryInt(query.Get("offset"), 0),
	}
	if start := query.Get("start_time"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			filter.StartTime = t
		}
	}
	if end := query.Get("end_time"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			filter.EndTime = t
		}
	}

	entries, err := s.QueryAuditTrail(r.Context(), filter)
	if err != nil {
		s.writePortalError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func parseQueryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response:", err)
	}
}

func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errorTypeForStatus(statusCode),
			"message": message,
			"code":    statusCode,
		},
		"timestamp": time.Now().UTC(),
	}
	s.writeJSONResponse(w, statusCode, errorResponse)
}

// writePortalError maps a service error onto the HTTP status it represents
func (s *Service) writePortalError(w http.ResponseWriter, err error) {
	portalErr, ok := err.(*types.PortalError)
	if !ok {
		s.logger.Error("Unclassified error on request path:", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var statusCode int
	switch portalErr.Type {
	case types.ErrorTypeValidation:
		statusCode = http.StatusBadRequest
	case types.ErrorTypeAuthentication:
		statusCode = http.StatusUnauthorized
	case types.ErrorTypeAuthorization:
		statusCode = http.StatusForbidden
	case types.ErrorTypeNotFound:
		statusCode = http.StatusNotFound
	case types.ErrorTypeConflict:
		statusCode = http.StatusConflict
	case types.ErrorTypeIntegrity:
		statusCode = http.StatusUnprocessableEntity
	case types.ErrorTypeExternal:
		statusCode = http.StatusBadGateway
	default:
		statusCode = http.StatusInternalServerError
	}

	s.writeErrorResponse(w, statusCode, portalErr.Message)
}

func errorTypeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "ValidationError"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "AuthorizationError"
	case http.StatusNotFound:
		return "NotFoundError"
	case http.StatusConflict:
		return "ConflictError"
	case http.StatusUnprocessableEntity:
		return "IntegrityError"
	case http.StatusTooManyRequests, http.StatusBadGateway:
		return "ExternalError"
	default:
		return "InternalError"
	}
}
