package taskstore

import (
	"fmt"
	"strconv"
	"strings"

	"kanban/internal/models"
)

const (
	fieldID          = "id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldStatus      = "status"
	fieldCreatedAt   = "created_at"
	fieldTags        = "tags"

	tagDelimiter = ","
)

// encodeTask flattens a task into the text field map stored in the backend.
func encodeTask(t models.Task) map[string]string {
	return map[string]string{
		fieldID:          strconv.FormatInt(t.ID, 10),
		fieldTitle:       t.Title,
		fieldDescription: t.Description,
		fieldStatus:      string(t.Status),
		fieldCreatedAt:   strconv.FormatInt(t.CreatedAt, 10),
		fieldTags:        strings.Join(t.Tags, tagDelimiter),
	}
}

// decodeTask rebuilds a task from its stored field map. A missing created_at
// decodes as zero and a missing status as todo; an unparsable number is an
// ErrCorruptRecord.
func decodeTask(rec map[string]string) (models.Task, error) {
	id, err := strconv.ParseInt(rec[fieldID], 10, 64)
	if err != nil {
		return models.Task{}, fmt.Errorf("%w: id %q", ErrCorruptRecord, rec[fieldID])
	}

	var createdAt int64
	if raw, ok := rec[fieldCreatedAt]; ok && raw != "" {
		createdAt, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.Task{}, fmt.Errorf("%w: created_at %q", ErrCorruptRecord, raw)
		}
	}

	status := models.Status(rec[fieldStatus])
	if status == "" {
		status = models.StatusTodo
	}

	return models.Task{
		ID:          id,
		Title:       rec[fieldTitle],
		Description: rec[fieldDescription],
		Status:      status,
		CreatedAt:   createdAt,
		Tags:        splitTags(rec[fieldTags]),
	}, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, tagDelimiter)
}
