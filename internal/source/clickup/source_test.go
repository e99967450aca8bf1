package clickup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clickup_collector/internal/domain"
	"clickup_collector/internal/fields"
)

type SourceTestSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestSourceTestSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func (s *SourceTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (s *SourceTestSuite) newSource(baseURL string, attempts int) *Source {
	decoder := fields.NewDecoder(fields.Config{
		ParentField: "IsParent",
		ParentLabel: "Parent",
		ClientField: "CLIENT 2025",
	}, s.logger)
	return New(Config{
		BaseURL:        baseURL,
		Token:          "pk_test",
		Timeout:        5 * time.Second,
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, decoder, s.logger)
}

const pageZero = `{
  "tasks": [
    {
      "id": "root1",
      "name": "Raport Luty ACME",
      "parent": null,
      "status": {"status": "in progress"},
      "time_spent": 600000,
      "date_created": "1700000000000",
      "date_updated": "1700000500000",
      "start_date": null,
      "due_date": "1700100000000",
      "archived": false,
      "assignees": [{"id": 3, "username": "c"}, {"id": 1, "username": "a"}],
      "custom_fields": [
        {"id": "f1", "name": "IsParent", "type": "drop_down", "value": 0,
         "type_config": {"options": [{"id": "o-parent", "name": "Parent", "orderindex": 0}, {"id": "o-child", "name": "Child", "orderindex": 1}]}},
        {"id": "f2", "name": "CLIENT 2025", "type": "drop_down", "value": "c-acme",
         "type_config": {"options": [{"id": "c-acme", "name": "ACME", "orderindex": "0"}]}}
      ]
    }
  ],
  "last_page": false
}`

const pageOne = `{
  "tasks": [
    {
      "id": "sub1",
      "name": "Work",
      "parent": "root1",
      "status": {"status": "done"},
      "date_updated": "1700000600000",
      "archived": true,
      "assignees": []
    }
  ],
  "last_page": true
}`

func (s *SourceTestSuite) TestFetchTasks_PaginatesUntilLastPage() {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		s.Equal("/list/L1/task", r.URL.Path)
		s.Equal("pk_test", r.Header.Get("Authorization"))
		s.Equal("true", r.URL.Query().Get("subtasks"))
		s.Equal("true", r.URL.Query().Get("archived"))
		s.Equal("1700000000000", r.URL.Query().Get("date_updated_gt"))

		switch r.URL.Query().Get("page") {
		case "0":
			fmt.Fprint(w, pageZero)
		case "1":
			fmt.Fprint(w, pageOne)
		default:
			s.Fail("unexpected page request")
		}
	}))
	defer server.Close()

	after := time.UnixMilli(1700000000000)
	tasks, err := s.newSource(server.URL, 1).FetchTasks(context.Background(), "L1", domain.FetchOptions{
		UpdatedAfter:    &after,
		IncludeArchived: true,
	})

	s.Require().NoError(err)
	s.Equal(int32(2), atomic.LoadInt32(&calls))
	s.Require().Len(tasks, 2)

	root := tasks[0]
	s.Equal("root1", root.ID)
	s.Equal("L1", root.ListID)
	s.Nil(root.ParentID)
	s.True(root.IsParentRoot)
	s.Require().NotNil(root.ClientName)
	s.Equal("ACME", *root.ClientName)
	s.Require().NotNil(root.ExtractedMonth)
	s.Equal("luty", *root.ExtractedMonth)
	s.Equal(int64(600000), root.TimeSpentMs)
	s.Equal("in progress", root.Status)
	s.Require().NotNil(root.UpdatedAt)
	s.Equal(int64(1700000500000), root.UpdatedAt.UnixMilli())
	s.Nil(root.StartDate)
	s.NotNil(root.DueDate)
	s.Equal([]int64{1, 3}, root.AssigneeIDs)

	sub := tasks[1]
	s.Require().NotNil(sub.ParentID)
	s.Equal("root1", *sub.ParentID)
	s.False(sub.IsParentRoot)
	s.Nil(sub.ExtractedMonth)
	s.Equal(int64(0), sub.TimeSpentMs)
	s.True(sub.Archived)
	s.Empty(sub.AssigneeIDs)
}

func (s *SourceTestSuite) TestFetchTasks_StopsOnEmptyPage() {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		s.Empty(r.URL.Query().Get("date_updated_gt"))
		s.Equal("false", r.URL.Query().Get("archived"))
		if r.URL.Query().Get("page") == "0" {
			fmt.Fprint(w, `{"tasks":[{"id":"a","name":"A","status":{"status":"open"}}]}`)
			return
		}
		fmt.Fprint(w, `{"tasks":[]}`)
	}))
	defer server.Close()

	tasks, err := s.newSource(server.URL, 1).FetchTasks(context.Background(), "L1", domain.FetchOptions{})

	s.Require().NoError(err)
	s.Len(tasks, 1)
	s.Equal(int32(2), atomic.LoadInt32(&calls))
}

func (s *SourceTestSuite) TestFetchTasks_EmptyParentIsRoot() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"last_page": true, "tasks": [{
			"id": "root1",
			"name": "Raport Marzec",
			"parent": "",
			"status": {"status": "open"},
			"custom_fields": [
				{"id": "f1", "name": "IsParent", "type": "drop_down", "value": 0,
				 "type_config": {"options": [{"id": "o-parent", "name": "Parent", "orderindex": 0}]}}
			]
		}]}`)
	}))
	defer server.Close()

	var logs bytes.Buffer
	s.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	tasks, err := s.newSource(server.URL, 1).FetchTasks(context.Background(), "L1", domain.FetchOptions{})

	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Nil(tasks[0].ParentID)
	s.True(tasks[0].IsParentRoot)
	s.NotContains(logs.String(), "subtask is flagged as a root task")
}

func (s *SourceTestSuite) TestFetchTasks_ClientErrorIsNotRetried() {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tasks, err := s.newSource(server.URL, 3).FetchTasks(context.Background(), "L1", domain.FetchOptions{})

	s.Error(err)
	s.Nil(tasks)
	s.True(errors.Is(err, domain.ErrExternalAPI))
	s.Contains(err.Error(), "401")
	s.Equal(int32(1), atomic.LoadInt32(&calls))
}

func (s *SourceTestSuite) TestFetchTasks_RetriesServerErrors() {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"tasks":[],"last_page":true}`)
	}))
	defer server.Close()

	tasks, err := s.newSource(server.URL, 3).FetchTasks(context.Background(), "L1", domain.FetchOptions{})

	s.NoError(err)
	s.Empty(tasks)
	s.Equal(int32(2), atomic.LoadInt32(&calls))
}

func (s *SourceTestSuite) TestFetchTasks_MidPaginationFailureReturnsNothing() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "0" {
			fmt.Fprint(w, pageZero)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tasks, err := s.newSource(server.URL, 2).FetchTasks(context.Background(), "L1", domain.FetchOptions{})

	s.Error(err)
	s.True(errors.Is(err, domain.ErrExternalAPI))
	s.Nil(tasks)
}

func (s *SourceTestSuite) TestFetchUsers_DeduplicatesAcrossTeams() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/team", r.URL.Path)
		fmt.Fprint(w, `{"teams":[
			{"id":"t1","members":[{"user":{"id":1,"username":"a","email":"a@x","role":1}},{"user":{"id":2,"username":"b","email":"","role":4}}]},
			{"id":"t2","members":[{"user":{"id":1,"username":"a","email":"a@x","role":1}},{"user":{"id":3,"username":"c","role":3}}]}
		]}`)
	}))
	defer server.Close()

	users, err := s.newSource(server.URL, 1).FetchUsers(context.Background())

	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal(int64(1), users[0].ID)
	s.Require().NotNil(users[0].Email)
	s.Equal("a@x", *users[0].Email)
	s.Require().NotNil(users[0].Role)
	s.Equal(1, *users[0].Role)
	s.Nil(users[1].Email)
	s.Equal(4, *users[1].Role)
	s.Equal(int64(3), users[2].ID)
}
