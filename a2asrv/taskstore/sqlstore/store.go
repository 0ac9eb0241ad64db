package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
)

// Store is a gorm-backed taskstore.TaskStateProvider.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) a sqlite-backed Store at dsn. Use ":memory:"
// for an ephemeral in-process database useful in tests.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite task store: %w", err)
	}
	if err := db.AutoMigrate(&taskRow{}); err != nil {
		return nil, fmt.Errorf("migrate task store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-opened gorm DB, running the same migration. Useful
// when the database connection is shared with other stores.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&taskRow{}); err != nil {
		return nil, fmt.Errorf("migrate task store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts task. isReplicated is accepted for interface compatibility
// with taskstore.TaskStore; this backend has no replication-echo concern
// of its own, since the replication bridge lives above the store.
func (s *Store) Save(ctx context.Context, task *a2a.Task, isReplicated bool) error {
	row, err := toRow(task)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return a2a.InternalErrorFrom(err, true)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(taskID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, a2a.TaskNotFoundError(taskID)
	}
	if err != nil {
		return nil, a2a.InternalErrorFrom(err, true)
	}
	return fromRow(&row)
}

func (s *Store) Delete(ctx context.Context, taskID a2a.TaskID) error {
	if err := s.db.WithContext(ctx).Delete(&taskRow{}, "id = ?", string(taskID)).Error; err != nil {
		return a2a.InternalErrorFrom(err, true)
	}
	return nil
}

func (s *Store) IsTaskActive(ctx context.Context, taskID a2a.TaskID) (bool, error) {
	task, err := s.Get(ctx, taskID)
	if a2a.IsTaskNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !task.Status.State.IsFinal(), nil
}

func (s *Store) IsTaskFinalized(ctx context.Context, taskID a2a.TaskID) (bool, error) {
	task, err := s.Get(ctx, taskID)
	if a2a.IsTaskNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return task.Status.State.IsFinal(), nil
}

// List implements the §4.3 listing contract with a WHERE status_timestamp
// < ? OR (status_timestamp = ? AND id > ?) keyset clause, matching the
// (status_timestamp DESC, id ASC) order, instead of the in-memory store's
// binary search, pushed down to the database.
func (s *Store) List(ctx context.Context, params taskstore.ListParams) (taskstore.ListResult, error) {
	query := s.db.WithContext(ctx).Model(&taskRow{})
	if params.ContextID != "" {
		query = query.Where("context_id = ?", string(params.ContextID))
	}
	if params.State != "" {
		query = query.Where("status_state = ?", string(params.State))
	}
	if !params.StatusTimestampAfter.IsZero() {
		query = query.Where("status_timestamp > ?", params.StatusTimestampAfter)
	}

	var totalCount int64
	if err := query.Session(&gorm.Session{}).Count(&totalCount).Error; err != nil {
		return taskstore.ListResult{}, a2a.InternalErrorFrom(err, true)
	}

	if params.PageToken != "" {
		tok, err := decodeSQLPageToken(params.PageToken)
		if err != nil {
			return taskstore.ListResult{}, a2a.InvalidParamsError(fmt.Sprintf("invalid page token: %v", err))
		}
		query = query.Where(
			"status_timestamp < ? OR (status_timestamp = ? AND id > ?)",
			tok.timestamp, tok.timestamp, string(tok.id),
		)
	}

	query = query.Order("status_timestamp DESC, id ASC")
	pageSize := params.PageSize
	if pageSize > 0 {
		query = query.Limit(pageSize + 1)
	}

	var rows []taskRow
	if err := query.Find(&rows).Error; err != nil {
		return taskstore.ListResult{}, a2a.InternalErrorFrom(err, true)
	}

	hasMore := pageSize > 0 && len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}

	result := taskstore.ListResult{
		Tasks:      make([]*a2a.Task, len(rows)),
		TotalCount: int(totalCount),
	}
	for i, row := range rows {
		task, err := fromRow(&row)
		if err != nil {
			return taskstore.ListResult{}, err
		}
		result.Tasks[i] = projectTask(task, params)
	}
	if hasMore {
		last := rows[len(rows)-1]
		result.NextPageToken = encodeSQLPageToken(last.StatusTimestamp, a2a.TaskID(last.ID))
	}
	return result, nil
}

func projectTask(task *a2a.Task, params taskstore.ListParams) *a2a.Task {
	if params.HistoryLength > 0 && len(task.History) > params.HistoryLength {
		task.History = task.History[len(task.History)-params.HistoryLength:]
	}
	if !params.IncludeArtifacts {
		task.Artifacts = nil
	}
	return task
}

var (
	_ taskstore.TaskStore         = (*Store)(nil)
	_ taskstore.TaskStateProvider = (*Store)(nil)
)
