package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/models"
)

var columnTitles = map[models.Status]string{
	models.StatusTodo:       "To Do",
	models.StatusInProgress: "In Progress",
	models.StatusDone:       "Done",
}

type column struct {
	Status models.Status
	Title  string
	Tasks  []models.Task
}

type formValues struct {
	Title       string
	Description string
	Tags        string
}

type boardPage struct {
	Columns  []column
	Statuses []models.Status
	Form     formValues
	Error    string
}

func buildColumns(board models.Board) []column {
	cols := make([]column, 0, len(models.Statuses))
	for _, status := range models.Statuses {
		cols = append(cols, column{
			Status: status,
			Title:  columnTitles[status],
			Tasks:  board.Column(status),
		})
	}
	return cols
}

// splitTagInput turns the comma separated form field into tags.
func splitTagInput(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// renderBoard renders the server-side board with an optional error banner.
func (s *Server) renderBoard(c *gin.Context, status int, form formValues, message string) {
	tasks, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("render board", slog.String("error", err.Error()))
		c.String(statusFor(err), "unable to load tasks: %v", err)
		return
	}
	c.HTML(status, "board.html", boardPage{
		Columns:  buildColumns(models.GroupByStatus(tasks)),
		Statuses: models.Statuses,
		Form:     form,
		Error:    message,
	})
}

// handleBoardPage renders the three columns server-side.
func (s *Server) handleBoardPage(c *gin.Context) {
	s.renderBoard(c, http.StatusOK, formValues{}, "")
}

// handleInteractivePage serves the drag-and-drop board backed by the JSON API.
func (s *Server) handleInteractivePage(c *gin.Context) {
	c.HTML(http.StatusOK, "interactive.html", boardPage{
		Columns:  buildColumns(models.GroupByStatus(nil)),
		Statuses: models.Statuses,
	})
}

// handleCreateForm creates a task from the add form and redirects back.
func (s *Server) handleCreateForm(c *gin.Context) {
	form := formValues{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        c.PostForm("tags"),
	}
	if isBlank(form.Title) {
		s.renderBoard(c, http.StatusBadRequest, form, errTitleRequired.Error())
		return
	}

	task, err := s.store.Create(c.Request.Context(), form.Title, form.Description, splitTagInput(form.Tags))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			s.renderBoard(c, status, form, err.Error())
			return
		}
		s.logger.Error("create task", slog.String("error", err.Error()))
		c.String(status, "unable to create task: %v", err)
		return
	}

	s.logger.Info("task created", slog.Int64("id", task.ID))
	c.Redirect(http.StatusSeeOther, "/")
}

// handleMoveForm changes a task's column from the board page.
func (s *Server) handleMoveForm(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	moved, err := s.store.UpdateStatus(c.Request.Context(), id, models.Status(c.PostForm("status")))
	if err != nil {
		s.logger.Error("move task", slog.Int64("id", id), slog.String("error", err.Error()))
		c.String(statusFor(err), "unable to move task: %v", err)
		return
	}
	if !moved {
		s.renderBoard(c, http.StatusBadRequest, formValues{}, errInvalidMove.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleDeleteForm removes a task from the board page.
func (s *Server) handleDeleteForm(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.logger.Error("delete task", slog.Int64("id", id), slog.String("error", err.Error()))
		c.String(statusFor(err), "unable to delete task: %v", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}
