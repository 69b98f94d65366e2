package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/arcweave/phantom/internal/analysis/differ"
	"github.com/arcweave/phantom/internal/analysis/parser"
	"github.com/arcweave/phantom/internal/analysis/runner"
	"github.com/arcweave/phantom/internal/gitbridge"
	"github.com/arcweave/phantom/internal/logger"
	"github.com/arcweave/phantom/internal/pty"
	"github.com/arcweave/phantom/internal/store"
	"github.com/arcweave/phantom/internal/terminal"
)

// Server is the command surface from spec.md §6, exposed as plain
// net/http over a unix domain socket. Grounded on the teacher's
// internal/transport/server.go Server/ListenAndServe/registerRoutes
// shape; routes and JSON bodies are new (spec's command surface has no
// counterpart in the teacher's task/thread API).
type Server struct {
	db   *store.Store
	git  *gitbridge.Bridge
	run  *runner.Runner
	mux  *terminal.Multiplexer
	repo string

	socketPath string
	shell      string

	hub *Hub // event-stream hub; frames from terminal pumps land here
}

func NewServer(db *store.Store, git *gitbridge.Bridge, run *runner.Runner, mux *terminal.Multiplexer, repo, socketPath, shell string, hub *Hub) *Server {
	return &Server{db: db, git: git, run: run, mux: mux, repo: repo, socketPath: socketPath, shell: shell, hub: hub}
}

// ListenAndServe binds the unix socket and serves until ctx is canceled,
// removing a stale socket file left by a prior crashed process first
// (same stale-socket handling as the teacher's transport.Server).
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := os.Stat(s.socketPath); err == nil {
		os.Remove(s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
		os.Remove(s.socketPath)
		return nil
	case err := <-errCh:
		os.Remove(s.socketPath)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /terminals", s.handleCreateTerminal)
	mux.HandleFunc("POST /terminals/{id}/input", s.handleWriteInput)
	mux.HandleFunc("POST /terminals/{id}/resize", s.handleResizeTerminal)
	mux.HandleFunc("DELETE /terminals/{id}", s.handleCloseTerminal)

	mux.HandleFunc("GET /branches", s.handleListBranches)
	mux.HandleFunc("GET /branches/current", s.handleGetCurrentBranch)

	mux.HandleFunc("POST /analyses", s.handleRunAnalysis)
	mux.HandleFunc("GET /analyses/{id}", s.handleGetAnalysis)
	mux.HandleFunc("GET /analyses", s.handleListAnalyses)
	mux.HandleFunc("GET /analyses/diff", s.handleGetAnalysisDiff)

	mux.HandleFunc("GET /presets/analysis", s.handleListAnalysisPresets)
	mux.HandleFunc("POST /presets/analysis", s.handleCreateAnalysisPreset)
	mux.HandleFunc("GET /presets/cli", s.handleListCLIPresets)
	mux.HandleFunc("POST /presets/cli", s.handleCreateCLIPreset)

	mux.HandleFunc("GET /settings/{key}", s.handleGetSetting)
	mux.HandleFunc("PUT /settings/{key}", s.handleSetSetting)

	mux.HandleFunc("GET /events", s.hub.ServeHTTP)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger.Warn("ipc: request failed", "status", status, "err", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// --- terminal ---

type createTerminalRequest struct {
	Shell string   `json:"shell"`
	Cols  uint16   `json:"cols"`
	Rows  uint16   `json:"rows"`
	Cwd   string   `json:"cwd"`
	Env   []string `json:"env"`
}

type createTerminalResponse struct {
	SessionID int `json:"session_id"`
}

func (s *Server) handleCreateTerminal(w http.ResponseWriter, r *http.Request) {
	var req createTerminalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	shell := req.Shell
	if shell == "" {
		shell = s.shell
	}
	cols, rows := req.Cols, req.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	sess, err := s.mux.Create(shell, cols, rows, req.Cwd, req.Env)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	go terminal.Pump(context.Background(), sess, func(ev terminal.Event) {
		s.hub.BroadcastTerminal(sess.ID, ev)
		if ev.Kind == terminal.EventExited {
			s.mux.Remove(sess.ID)
		}
	})

	writeJSON(w, http.StatusCreated, createTerminalResponse{SessionID: sess.ID})
}

func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (*terminal.Session, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid session id"))
		return nil, false
	}
	sess, ok := s.mux.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %d not found", id))
		return nil, false
	}
	return sess, true
}

type writeInputRequest struct {
	Data []byte `json:"data"`
}

func (s *Server) handleWriteInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req writeInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := sess.WriteInput(req.Data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type resizeTerminalRequest struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

func (s *Server) handleResizeTerminal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req resizeTerminalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.Resize(req.Cols, req.Rows); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleCloseTerminal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	err := sess.Close()
	s.mux.Remove(sess.ID)
	if err != nil && !errors.Is(err, pty.ErrClosed) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// --- git bridge ---

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.git.ListBranches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (s *Server) handleGetCurrentBranch(w http.ResponseWriter, r *http.Request) {
	name, err := s.git.CurrentBranch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"branch": name})
}

// --- analysis ---

type runAnalysisRequest struct {
	PresetID     int64    `json:"preset_id"`
	Branch       string   `json:"branch"`
	Level        int      `json:"level"`
	TargetNodeID *string  `json:"target_node_id"`
	CLIBinary    string   `json:"cli_binary"`
	Model        string   `json:"model"`
	BudgetUSD    *float64 `json:"budget_usd"`
}

// resolveTargetNode looks up the parent graph (the most recently
// completed analysis for this preset/branch) and extracts the named
// node's label/path for prompt substitution (spec §4.11 step 7). Owned
// here, at the command-surface boundary, since it is the one place that
// already has both the stored parsed_graph JSON and the incoming
// target_node_id in scope.
func (s *Server) resolveTargetNode(branch string, presetID int64, targetNodeID string) (label, path string) {
	analyses, err := s.db.ListAnalyses(branch)
	if err != nil {
		return "", ""
	}
	for _, a := range analyses {
		if a.PresetID != presetID || a.Status != store.StatusCompleted || a.ParsedGraph == nil {
			continue
		}
		graph := &parser.ArchitectureGraph{}
		if err := json.Unmarshal([]byte(*a.ParsedGraph), graph); err != nil {
			continue
		}
		for _, n := range graph.Nodes {
			if n.ID == targetNodeID {
				if n.Metadata != nil {
					return n.Label, n.Metadata.Path
				}
				return n.Label, ""
			}
		}
	}
	return "", ""
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req runAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Branch == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("branch is required"))
		return
	}

	var label, path string
	if req.TargetNodeID != nil {
		label, path = s.resolveTargetNode(req.Branch, req.PresetID, *req.TargetNodeID)
	}

	id, err := s.run.RunAnalysis(context.WithoutCancel(r.Context()), runner.RunRequest{
		PresetID:     req.PresetID,
		Branch:       req.Branch,
		Level:        req.Level,
		TargetNodeID: req.TargetNodeID,
		TargetLabel:  label,
		TargetPath:   path,
		CLIBinary:    req.CLIBinary,
		Model:        req.Model,
		BudgetUSD:    req.BudgetUSD,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"analysis_id": id})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid analysis id"))
		return
	}
	a, err := s.db.GetAnalysis(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("analysis %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("branch query param is required"))
		return
	}
	analyses, err := s.db.ListAnalyses(branch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

// handleGetAnalysisDiff diffs two completed "diagram" analyses' parsed
// graphs (spec §4.10 structural graph differ, C10) — e.g. a branch's
// latest diagram against the cached main-branch diagram for the same
// preset and level.
func (s *Server) handleGetAnalysisDiff(w http.ResponseWriter, r *http.Request) {
	baseID, err := strconv.ParseInt(r.URL.Query().Get("base_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid base_id"))
		return
	}
	headID, err := strconv.ParseInt(r.URL.Query().Get("head_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid head_id"))
		return
	}

	base, err := s.loadGraph(baseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	head, err := s.loadGraph(headID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, differ.Compare(base, head))
}

func (s *Server) loadGraph(id int64) (*parser.ArchitectureGraph, error) {
	a, err := s.db.GetAnalysis(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("analysis %d not found", id)
	}
	if a.Status != store.StatusCompleted || a.ParsedGraph == nil {
		return nil, fmt.Errorf("analysis %d has no completed structural graph", id)
	}
	g := &parser.ArchitectureGraph{}
	if err := json.Unmarshal([]byte(*a.ParsedGraph), g); err != nil {
		return nil, fmt.Errorf("analysis %d: decode parsed graph: %w", id, err)
	}
	return g, nil
}

// --- presets ---

type createAnalysisPresetRequest struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Prompt   string  `json:"prompt_template"`
	Schedule *string `json:"schedule"`
}

func (s *Server) handleListAnalysisPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.db.ListAnalysisPresets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

func (s *Server) handleCreateAnalysisPreset(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.db.CreateAnalysisPreset(req.Name, req.Type, req.Prompt, req.Schedule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListCLIPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.db.ListCLIPresets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

func (s *Server) handleCreateCLIPreset(w http.ResponseWriter, r *http.Request) {
	var p store.CLIPreset
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.db.CreateCLIPreset(&p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// --- settings ---

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, ok, err := s.db.GetSetting(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("setting %q not found", key))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

type setSettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.db.SetSetting(key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
