package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/models"
)

var (
	errTitleRequired    = errors.New("title required")
	errIDStatusRequired = errors.New("id and status required")
	errIDRequired       = errors.New("id required")
	errInvalidMove      = errors.New("invalid id or status")
	errTaskNotFound     = errors.New("task not found")
)

// taskID accepts an id sent either as a JSON number or a numeric string.
type taskID int64

func (id *taskID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.New("id must be an integer")
	}
	*id = taskID(n)
	return nil
}

type createRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type moveRequest struct {
	ID     *taskID `json:"id"`
	Status *string `json:"status"`
}

type deleteRequest struct {
	ID *taskID `json:"id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// bindJSON decodes an optional JSON body; an empty body leaves req untouched.
func bindJSON(c *gin.Context, req any) error {
	if c.Request.Body == nil {
		return nil
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}

// handleListTasks returns every task grouped into the board columns.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.List(c.Request.Context())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, models.GroupByStatus(tasks))
}

// handleGetTask returns a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, found, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	if !found {
		s.respondError(c, http.StatusNotFound, errTaskNotFound)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleCreateTask creates a task in the todo column.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if isBlank(req.Title) {
		s.respondError(c, http.StatusBadRequest, errTitleRequired)
		return
	}

	task, err := s.store.Create(c.Request.Context(), req.Title, req.Description, req.Tags)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	s.logger.Info("task created", slog.Int64("id", task.ID))
	respondSuccess(c, http.StatusCreated, task)
}

// handleMoveTask changes the status of the task named in the body.
func (s *Server) handleMoveTask(c *gin.Context) {
	var req moveRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.ID == nil || req.Status == nil {
		s.respondError(c, http.StatusBadRequest, errIDStatusRequired)
		return
	}
	s.move(c, int64(*req.ID), models.Status(*req.Status))
}

// handleUpdateStatus is the REST form of handleMoveTask.
func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	s.move(c, id, models.Status(req.Status))
}

func (s *Server) move(c *gin.Context, id int64, status models.Status) {
	ctx := c.Request.Context()

	from, _, err := s.store.StatusOf(ctx, id)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}

	moved, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	if !moved {
		s.respondError(c, http.StatusBadRequest, errInvalidMove)
		return
	}

	s.logger.Info("task moved", slog.Int64("id", id), slog.String("from", string(from)), slog.String("to", string(status)))
	respondSuccess(c, http.StatusOK, gin.H{"ok": true})
}

// handleDeleteByBody removes the task named in the body.
func (s *Server) handleDeleteByBody(c *gin.Context) {
	var req deleteRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.ID == nil {
		s.respondError(c, http.StatusBadRequest, errIDRequired)
		return
	}
	s.remove(c, int64(*req.ID))
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s.remove(c, id)
}

func (s *Server) remove(c *gin.Context, id int64) {
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	s.logger.Info("task deleted", slog.Int64("id", id))
	respondSuccess(c, http.StatusOK, gin.H{"ok": true})
}
