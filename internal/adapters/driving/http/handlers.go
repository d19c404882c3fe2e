package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/helion-labs/calconnect-core/internal/core/domain"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and optional Redis)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backend is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Calendar integration actions

// handleConnect godoc
// @Summary      Start calendar OAuth flow
// @Description  Returns the provider authorization URL for the tenant to open in a popup
// @Tags         Calendar
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        action   query     string                  true  "Must be connect"
// @Param        request  body      driving.ConnectRequest  false "Optional frontend origin"
// @Success      200      {object}  driving.ConnectResponse
// @Failure      400      {object}  ErrorResponse  "OAuth client not configured"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [post]
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	var req driving.ConnectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.Meta = requestMeta(r)

	resp, err := s.flowService.Connect(r.Context(), req)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// popupTemplate renders the page served to the OAuth popup after the
// provider redirect. It notifies the opener and closes itself.
var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><title>Calendar connection</title></head>
<body>
<p>{{.Message}} You can close this window.</p>
<script>
{{if .Origin}}
if (window.opener) {
	window.opener.postMessage({type: "calendar-oauth", status: {{.Status}}, email: {{.Email}}}, {{.Origin}});
}
{{end}}
window.close();
</script>
</body>
</html>
`))

type popupData struct {
	Message string
	Status  string
	Email   string
	Origin  string
}

// handleCallback godoc
// @Summary      OAuth provider callback
// @Description  Receives the provider redirect, completes the flow, and renders a popup-closing page. Authenticated by the signed state parameter.
// @Tags         Calendar
// @Produce      html
// @Param        action  query  string  true   "Must be callback"
// @Param        code    query  string  false  "Authorization code"
// @Param        state   query  string  true   "Signed state parameter"
// @Param        error   query  string  false  "Provider error code"
// @Success      200  {string}  string  "HTML page"
// @Router       /integrations/calendar [get]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
		Meta:  requestMeta(r),
	}

	resp, err := s.flowService.Callback(r.Context(), req)

	data := popupData{Message: "Calendar connected.", Status: "success"}
	if err != nil {
		data.Message = "Calendar connection failed."
		data.Status = "error"
	} else {
		data.Email = resp.ConnectedAccountEmail
		data.Origin = resp.FrontendOrigin
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := popupTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, "render failed")
	}
}

// handleCallbackProxy godoc
// @Summary      OAuth callback proxy
// @Description  Completes the flow for frontends that received the redirect themselves. Authenticated by the signed state parameter.
// @Tags         Calendar
// @Accept       json
// @Produce      json
// @Param        action   query     string                   true  "Must be callback-proxy"
// @Param        request  body      driving.CallbackRequest  true  "Code, state, and the exact redirect URI"
// @Success      200      {object}  driving.CallbackResponse
// @Failure      400      {object}  driving.OAuthError  "Invalid state, denied, or exchange failed"
// @Router       /integrations/calendar [post]
func (s *Server) handleCallbackProxy(w http.ResponseWriter, r *http.Request) {
	var req driving.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Meta = requestMeta(r)

	resp, err := s.flowService.Callback(r.Context(), req)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDisconnect godoc
// @Summary      Disconnect calendar
// @Description  Revokes tokens (best effort), deletes credentials, and resets the integration. Idempotent.
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  true  "Must be disconnect"
// @Success      200     {object}  StatusResponse
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [post]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	err := s.flowService.Disconnect(r.Context(), driving.DisconnectRequest{
		TenantID: claims.TenantID,
		UserID:   claims.UserID,
		Meta:     requestMeta(r),
	})
	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTest godoc
// @Summary      Test calendar connectivity
// @Description  Lists the connected account's calendars and records the outcome
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  true  "Must be test"
// @Success      200     {object}  driving.TestResponse
// @Failure      400     {object}  ErrorResponse  "Not connected"
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [post]
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	resp, err := s.flowService.TestConnection(r.Context(), driving.TestRequest{
		TenantID: claims.TenantID,
		UserID:   claims.UserID,
		Meta:     requestMeta(r),
	})
	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSelectCalendar godoc
// @Summary      Select default calendar
// @Description  Records the tenant's default calendar for scheduling
// @Tags         Calendar
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        action   query     string                         true  "Must be select-calendar"
// @Param        request  body      driving.SelectCalendarRequest  true  "Calendar id and display name"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Missing calendar id or not connected"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [post]
func (s *Server) handleSelectCalendar(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	var req driving.SelectCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID

	if err := s.flowService.SelectCalendar(r.Context(), req); err != nil {
		s.writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus godoc
// @Summary      Integration status
// @Description  Returns the tenant's integration snapshot with secrets redacted
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  true  "Must be status"
// @Success      200     {object}  domain.IntegrationSnapshot
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	snapshot, err := s.statusService.Status(r.Context(), claims.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// handleSaveConfig godoc
// @Summary      Save OAuth client config
// @Description  Stores the tenant's OAuth application credentials. The secret is encrypted at rest and never returned.
// @Tags         Calendar
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        action   query     string                     true  "Must be save-config"
// @Param        request  body      driving.SaveConfigRequest  true  "Client id and secret"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Client id is required"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [post]
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	var req driving.SaveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.Meta = requestMeta(r)

	if err := s.configService.SaveConfig(r.Context(), req); err != nil {
		s.writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetConfig godoc
// @Summary      Get OAuth client config
// @Description  Returns the tenant's client id with the secret masked
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  true  "Must be get-config"
// @Success      200     {object}  driving.ClientConfig
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [get]
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	cfg, err := s.configService.GetConfig(r.Context(), claims.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleAuditLog godoc
// @Summary      Integration audit log
// @Description  Returns the tenant's most recent audit events, newest first
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  true   "Must be audit-log"
// @Param        limit   query     int     false  "Maximum events to return"
// @Success      200     {array}   domain.AuditEvent
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [get]
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := s.statusService.AuditLog(r.Context(), claims.TenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit log lookup failed")
		return
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

// handleInit godoc
// @Summary      Combined integration view
// @Description  Returns status, config, and recent audit events in one response
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        action  query     string  true  "Must be init"
// @Success      200     {object}  driving.InitResponse
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /integrations/calendar [get]
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	claims := GetTenantClaims(r.Context())

	resp, err := s.statusService.Init(r.Context(), claims.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "init lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeFlowError maps service errors to HTTP responses. OAuth errors keep
// their structured shape; domain sentinels map to stable generic messages.
func (s *Server) writeFlowError(w http.ResponseWriter, err error) {
	var oauthErr *driving.OAuthError
	if errors.As(err, &oauthErr) {
		writeJSON(w, http.StatusBadRequest, oauthErr)
		return
	}

	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "oauth client not configured")
	case errors.Is(err, domain.ErrNotConnected):
		writeError(w, http.StatusBadRequest, "calendar not connected")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requestMeta extracts caller attribution for the audit trail.
func requestMeta(r *http.Request) driving.RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// First hop is the original client.
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}

	return driving.RequestMeta{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
