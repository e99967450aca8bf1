package fields

import (
	"log/slog"
	"strings"
)

// Config names the custom fields that carry business attributes.
type Config struct {
	ParentField string
	ParentLabel string
	ClientField string
}

// Input is the part of a fetched task the decoder looks at.
type Input struct {
	TaskID   string
	Name     string
	ParentID *string
	Fields   []Field
}

// Attributes are the decoded business attributes of a task.
type Attributes struct {
	IsParentRoot   bool
	ClientName     *string
	ExtractedMonth *string
}

type Decoder struct {
	cfg    Config
	logger *slog.Logger
}

func NewDecoder(cfg Config, logger *slog.Logger) *Decoder {
	return &Decoder{cfg: cfg, logger: logger}
}

func (d *Decoder) Decode(in Input) Attributes {
	var attrs Attributes

	if label, ok := ResolveString(in.Fields, d.cfg.ParentField); ok {
		attrs.IsParentRoot = label == d.cfg.ParentLabel
	}

	if client, ok := ResolveString(in.Fields, d.cfg.ClientField); ok && strings.TrimSpace(client) != "" {
		attrs.ClientName = &client
	}

	if attrs.IsParentRoot {
		if month, ok := ExtractMonth(in.Name); ok {
			attrs.ExtractedMonth = &month
		}
	}

	if in.ParentID != nil && attrs.IsParentRoot {
		d.logger.Warn("subtask is flagged as a root task",
			"task_id", in.TaskID,
			"parent_task_id", *in.ParentID,
			"name", in.Name,
		)
	}

	return attrs
}
