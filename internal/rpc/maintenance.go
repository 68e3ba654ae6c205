package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/qchemaxis/internal/maintenance"
)

const (
	// MaintenanceServiceName is the fully-qualified name of the maintenance service.
	MaintenanceServiceName = "qchemaxis.admin.v1.MaintenanceService"

	// MaintenanceServiceAuditProcedure is the path of the Audit RPC.
	MaintenanceServiceAuditProcedure = "/" + MaintenanceServiceName + "/Audit"
	// MaintenanceServiceCleanupProcedure is the path of the Cleanup RPC.
	MaintenanceServiceCleanupProcedure = "/" + MaintenanceServiceName + "/Cleanup"
)

// AuditRequest selects optional audit report sections.
type AuditRequest struct {
	ListUsers bool `json:"listUsers"`
}

// CleanupRequest runs a cleanup. Live false is a dry run.
type CleanupRequest struct {
	Live bool `json:"live"`
}

// MaintenanceService runs the audit and cleanup tools.
type MaintenanceService struct {
	auditor *maintenance.Auditor
	cleaner *maintenance.Cleaner
	logger  *slog.Logger
}

// NewMaintenanceService creates the RPC implementation.
func NewMaintenanceService(auditor *maintenance.Auditor, cleaner *maintenance.Cleaner, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{auditor: auditor, cleaner: cleaner, logger: logger.With("service", "maintenance")}
}

// Audit runs a read-only audit.
func (s *MaintenanceService) Audit(ctx context.Context, req *connect.Request[AuditRequest]) (*connect.Response[maintenance.AuditReport], error) {
	report := s.auditor.Run(ctx, maintenance.AuditOptions{ListUsers: req.Msg.ListUsers})
	return connect.NewResponse(report), nil
}

// Cleanup plans, and in live mode applies, the repair change-set.
func (s *MaintenanceService) Cleanup(ctx context.Context, req *connect.Request[CleanupRequest]) (*connect.Response[maintenance.CleanupReport], error) {
	s.logger.Info("Cleanup requested", "live", req.Msg.Live)
	report := s.cleaner.Run(ctx, maintenance.CleanupOptions{Live: req.Msg.Live})
	return connect.NewResponse(report), nil
}

// NewMaintenanceServiceHandler builds an HTTP handler for svc. It returns
// the path prefix to mount the handler on.
func NewMaintenanceServiceHandler(svc *MaintenanceService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	audit := connect.NewUnaryHandler(MaintenanceServiceAuditProcedure, svc.Audit, opts...)
	cleanup := connect.NewUnaryHandler(MaintenanceServiceCleanupProcedure, svc.Cleanup, opts...)

	prefix := "/" + MaintenanceServiceName + "/"
	return prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case MaintenanceServiceAuditProcedure:
			audit.ServeHTTP(w, r)
		case MaintenanceServiceCleanupProcedure:
			cleanup.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// MaintenanceClient calls a remote MaintenanceService.
type MaintenanceClient struct {
	audit   *connect.Client[AuditRequest, maintenance.AuditReport]
	cleanup *connect.Client[CleanupRequest, maintenance.CleanupReport]
	token   string
}

// NewMaintenanceClient creates a client for the server at baseURL,
// authenticating with token.
func NewMaintenanceClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *MaintenanceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &MaintenanceClient{
		audit:   connect.NewClient[AuditRequest, maintenance.AuditReport](httpClient, baseURL+MaintenanceServiceAuditProcedure, opts...),
		cleanup: connect.NewClient[CleanupRequest, maintenance.CleanupReport](httpClient, baseURL+MaintenanceServiceCleanupProcedure, opts...),
		token:   token,
	}
}

// Audit runs a remote audit.
func (c *MaintenanceClient) Audit(ctx context.Context, in *AuditRequest) (*maintenance.AuditReport, error) {
	req := connect.NewRequest(in)
	c.authorize(req.Header())
	resp, err := c.audit.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Cleanup runs a remote cleanup.
func (c *MaintenanceClient) Cleanup(ctx context.Context, in *CleanupRequest) (*maintenance.CleanupReport, error) {
	req := connect.NewRequest(in)
	c.authorize(req.Header())
	resp, err := c.cleanup.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// authorize sets the bearer token and a fresh X-Request-ID so the server's
// logs for this call can be matched to the client's.
func (c *MaintenanceClient) authorize(h http.Header) {
	h.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}
