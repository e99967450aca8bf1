package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"clickup_collector/internal/domain"
	"clickup_collector/internal/fields"
)

const DefaultBaseURL = "https://api.clickup.com/api/v2"

// Config holds ClickUp client configuration.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source reads teams, users and tasks from the ClickUp API.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	decoder        *fields.Decoder
	logger         *slog.Logger
}

// New creates a new ClickUp source.
func New(cfg Config, decoder *fields.Decoder, logger *slog.Logger) *Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        baseURL,
		token:          cfg.Token,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		decoder:        decoder,
		logger:         logger.With("source", "clickup"),
	}
}

// ListTeams returns every team visible to the API token.
func (s *Source) ListTeams(ctx context.Context) ([]Team, error) {
	var resp TeamsResponse
	if err := s.get(ctx, s.baseURL+"/team", &resp); err != nil {
		return nil, fmt.Errorf("%w: list teams: %w", domain.ErrExternalAPI, err)
	}
	return resp.Teams, nil
}

// FetchUsers returns the members of all teams, deduplicated by user id.
func (s *Source) FetchUsers(ctx context.Context) ([]domain.User, error) {
	teams, err := s.ListTeams(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var users []domain.User
	for _, team := range teams {
		for _, m := range team.Members {
			if _, ok := seen[m.User.ID]; ok {
				continue
			}
			seen[m.User.ID] = struct{}{}

			user := domain.User{
				ID:       m.User.ID,
				Username: m.User.Username,
				Role:     m.User.Role,
				IsActive: true,
			}
			if m.User.Email != "" {
				email := m.User.Email
				user.Email = &email
			}
			users = append(users, user)
		}
	}

	s.logger.Debug("fetched users", "teams", len(teams), "users", len(users))
	return users, nil
}

// FetchTasks returns all tasks of a list including subtasks. Pages are read
// one after another until the API reports the last page or returns an empty one.
func (s *Source) FetchTasks(ctx context.Context, listID string, opts domain.FetchOptions) ([]domain.Task, error) {
	var all []APITask

	for page := 0; ; page++ {
		resp, err := s.fetchPage(ctx, listID, page, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch tasks of list %s page %d: %w", domain.ErrExternalAPI, listID, page, err)
		}

		all = append(all, resp.Tasks...)

		s.logger.Debug("fetched page",
			"list_id", listID,
			"page", page,
			"tasks", len(resp.Tasks),
			"total", len(all),
		)

		if len(resp.Tasks) == 0 || (resp.LastPage != nil && *resp.LastPage) {
			break
		}
	}

	return s.transform(listID, all), nil
}

func (s *Source) fetchPage(ctx context.Context, listID string, page int, opts domain.FetchOptions) (*TasksResponse, error) {
	q := url.Values{}
	q.Set("subtasks", "true")
	q.Set("page", strconv.Itoa(page))
	q.Set("archived", strconv.FormatBool(opts.IncludeArchived))
	if opts.UpdatedAfter != nil {
		q.Set("date_updated_gt", strconv.FormatInt(opts.UpdatedAfter.UnixMilli(), 10))
	}
	endpoint := fmt.Sprintf("%s/list/%s/task?%s", s.baseURL, url.PathEscape(listID), q.Encode())

	var resp TasksResponse
	if err := s.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Source) get(ctx context.Context, endpoint string, out any) error {
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.doRequest(ctx, endpoint, out)
		if err == nil {
			return nil
		}

		if !retryable(err) || attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	if s.maxAttempts > 1 {
		return fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
	}
	return err
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return fmt.Sprintf("unexpected status: %d (check the api token)", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

func retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}

func (s *Source) doRequest(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", s.token)
	req.Header.Set("User-Agent", "ClickUpCollector/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(listID string, raw []APITask) []domain.Task {
	tasks := make([]domain.Task, 0, len(raw))

	for _, t := range raw {
		custom := toFields(t.CustomFields)
		parentID := nonEmpty(t.Parent)
		attrs := s.decoder.Decode(fields.Input{
			TaskID:   t.ID,
			Name:     t.Name,
			ParentID: parentID,
			Fields:   custom,
		})

		task := domain.Task{
			ID:             t.ID,
			ListID:         listID,
			Name:           t.Name,
			ParentID:       parentID,
			IsParentRoot:   attrs.IsParentRoot,
			ClientName:     attrs.ClientName,
			ExtractedMonth: attrs.ExtractedMonth,
			Status:         t.Status.Status,
			CreatedAt:      s.parseMillis(t.ID, "date_created", t.DateCreated),
			UpdatedAt:      s.parseMillis(t.ID, "date_updated", t.DateUpdated),
			StartDate:      s.parseMillis(t.ID, "start_date", t.StartDate),
			DueDate:        s.parseMillis(t.ID, "due_date", t.DueDate),
			Archived:       t.Archived,
		}

		if t.TimeSpent != "" {
			if ms, err := t.TimeSpent.Int64(); err == nil {
				task.TimeSpentMs = ms
			} else {
				s.logger.Warn("failed to parse time spent", "task_id", t.ID, "time_spent", t.TimeSpent.String())
			}
		}

		ids := make([]int64, 0, len(t.Assignees))
		for _, a := range t.Assignees {
			ids = append(ids, a.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		task.AssigneeIDs = ids

		tasks = append(tasks, task)
	}

	return tasks
}

func (s *Source) parseMillis(taskID, field string, v *string) *time.Time {
	if v == nil || *v == "" {
		return nil
	}
	ms, err := strconv.ParseInt(*v, 10, 64)
	if err != nil {
		s.logger.Warn("failed to parse timestamp",
			"task_id", taskID,
			"field", field,
			"value", *v,
		)
		return nil
	}
	ts := time.UnixMilli(ms).UTC()
	return &ts
}

func toFields(raw []CustomField) []fields.Field {
	out := make([]fields.Field, 0, len(raw))
	for _, cf := range raw {
		kind := fields.Kind(cf.Type)

		var value any
		if len(cf.Value) > 0 {
			if err := json.Unmarshal(cf.Value, &value); err != nil {
				value = string(cf.Value)
			}
		}

		var options []fields.Option
		for _, opt := range cf.TypeConfig.Options {
			idx, err := strconv.Atoi(opt.OrderIndex.String())
			if err != nil {
				idx = -1
			}
			options = append(options, fields.Option{ID: opt.ID, OrderIndex: idx, Label: opt.Name})
		}

		out = append(out, fields.Field{
			Name:  cf.Name,
			Kind:  kind,
			Value: fields.NewValue(kind, value, options),
		})
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
