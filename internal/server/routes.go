// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vigil-dev/vigil/internal/watchdog"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "submit-heartbeat",
		Method:      http.MethodPost,
		Path:        "/watchdog",
		Summary:     "Submit a watchdog heartbeat",
		Tags:        []string{"watchdog"},
	}, s.handleHeartbeat)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Watchdog health snapshot",
		Tags:        []string{"watchdog"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Detailed watchdog status",
		Tags:        []string{"watchdog"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "index",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Service descriptor",
		Tags:        []string{"system"},
	}, s.handleIndex)

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-liveness",
		Method:      http.MethodGet,
		Path:        "/probe/liveness",
		Summary:     "Orchestrator liveness probe",
		Tags:        []string{"probes"},
	}, s.handleLiveness)

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-readiness",
		Method:      http.MethodGet,
		Path:        "/probe/readiness",
		Summary:     "Orchestrator readiness probe",
		Tags:        []string{"probes"},
	}, s.handleReadiness)
}

// --- Request/Response types for huma ---

type heartbeatInput struct {
	Body map[string]any `doc:"Alertmanager webhook payload or a single alert"`
}

type heartbeatOutput struct {
	Body struct {
		Status  string `json:"status" example:"success"`
		Message string `json:"message"`
	}
}

type healthOutput struct {
	Status int
	Body   watchdog.HealthSnapshot
}

type statusOutput struct {
	Body watchdog.DetailedStatus
}

type indexOutput struct {
	Body struct {
		Service   string            `json:"service"`
		Version   string            `json:"version"`
		Status    string            `json:"status"`
		Endpoints map[string]string `json:"endpoints"`
	}
}

type probeOutput struct {
	Status int
	Body   struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

// --- Handlers ---

// handleHeartbeat accepts every decodable payload with 200: validation
// problems are reported in the body, not the status code, so a
// misconfigured pipeline keeps getting a readable answer instead of
// retry-storming.
func (s *Server) handleHeartbeat(ctx context.Context, in *heartbeatInput) (*heartbeatOutput, error) {
	res, err := s.svc.RecordHeartbeat(ctx, in.Body)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	out := &heartbeatOutput{}
	out.Body.Status = res.Outcome
	out.Body.Message = res.Message
	return out, nil
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	snap, err := s.svc.Health()
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	code := http.StatusOK
	if !snap.IsHealthy && !snap.Status.Startup() {
		code = http.StatusServiceUnavailable
	}
	return &healthOutput{Status: code, Body: snap}, nil
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	st, err := s.svc.Status()
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &statusOutput{Body: st}, nil
}

func (s *Server) handleIndex(_ context.Context, _ *struct{}) (*indexOutput, error) {
	out := &indexOutput{}
	out.Body.Service = "vigil"
	out.Body.Version = s.cfg.Version
	out.Body.Status = "running"
	out.Body.Endpoints = map[string]string{
		"watchdog":        "POST /watchdog",
		"health":          "GET /health",
		"status":          "GET /status",
		"probe_liveness":  "GET /probe/liveness",
		"probe_readiness": "GET /probe/readiness",
	}
	return out, nil
}

func (s *Server) handleLiveness(_ context.Context, _ *struct{}) (*probeOutput, error) {
	alive, msg := s.probes.Liveness()
	return probeResult(alive, "alive", "dead", msg), nil
}

func (s *Server) handleReadiness(_ context.Context, _ *struct{}) (*probeOutput, error) {
	ready, msg := s.probes.Readiness()
	return probeResult(ready, "ready", "not_ready", msg), nil
}

func probeResult(ok bool, okStatus, failStatus, msg string) *probeOutput {
	out := &probeOutput{Status: http.StatusOK}
	out.Body.Status = okStatus
	out.Body.Message = msg
	if !ok {
		out.Status = http.StatusServiceUnavailable
		out.Body.Status = failStatus
	}
	return out
}
