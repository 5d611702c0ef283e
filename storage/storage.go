package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"todo-api/domain"
)

// partitionKey groups every todo under one partition; the service is
// single-tenant and identity lives in the RowKey alone.
const partitionKey = "todo"

// Storage provides access to the underlying persistence mechanism.
type Storage struct {
	todoTable *aztables.Client
}

// New creates a Storage instance from the given connection string. The
// client is built once at startup and borrowed by requests for the lifetime
// of the process.
func New(connStr, todosTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{todoTable: svc.NewClient(todosTable)}, nil
}

// entityKeys carries the table entity keys without the response-only fields
// (Timestamp, ETag) that must not appear in write payloads.
type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type todoEntity struct {
	entityKeys
	Title     string `json:"Title"`
	Completed bool   `json:"Completed"`
	UpdatedAt string `json:"UpdatedAt"`
}

// toDomain renders the store-native RowKey as the public string id.
func (e todoEntity) toDomain() domain.Todo {
	return domain.Todo{
		ID:        e.RowKey,
		Title:     e.Title,
		Completed: e.Completed,
		UpdatedAt: e.UpdatedAt,
	}
}

// todoMerge carries the sparse field set of a merge-mode update. Nil fields
// are omitted from the payload so the store leaves them untouched.
type todoMerge struct {
	entityKeys
	Title     *string `json:"Title,omitempty"`
	Completed *bool   `json:"Completed,omitempty"`
	UpdatedAt string  `json:"UpdatedAt"`
}

// CreateTodo persists a new todo with a store-assigned identifier.
func (s *Storage) CreateTodo(ctx context.Context, title string, completed bool, updatedAt string) (domain.Todo, error) {
	ent := todoEntity{
		entityKeys: entityKeys{PartitionKey: partitionKey, RowKey: uuid.NewString()},
		Title:      title,
		Completed:  completed,
		UpdatedAt:  updatedAt,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Todo{}, err
	}
	if _, err := s.todoTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Todo{}, err
	}
	return ent.toDomain(), nil
}

// FetchTodos retrieves every todo, most recently updated first.
func (s *Storage) FetchTodos(ctx context.Context) ([]domain.Todo, error) {
	filter := "PartitionKey eq '" + partitionKey + "'"
	pager := s.todoTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	todos := []domain.Todo{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent todoEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			todos = append(todos, ent.toDomain())
		}
	}
	sortByUpdatedAt(todos)
	return todos, nil
}

// sortByUpdatedAt orders todos newest first. ISO-8601 timestamps in UTC sort
// lexicographically, so string comparison is enough; the underlying order is
// kept stable for equal timestamps.
func sortByUpdatedAt(todos []domain.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		return todos[i].UpdatedAt > todos[j].UpdatedAt
	})
}

// UpdateTodo merges the sparse update into the todo matching id and returns
// the post-update record. domain.ErrNotFound is returned when no record
// matches; nothing is created in that case.
func (s *Storage) UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error) {
	merge := todoMerge{
		entityKeys: entityKeys{PartitionKey: partitionKey, RowKey: id},
		Title:      upd.Title,
		Completed:  upd.Completed,
		UpdatedAt:  upd.UpdatedAt,
	}
	payload, err := json.Marshal(merge)
	if err != nil {
		return domain.Todo{}, err
	}
	et := azcore.ETagAny
	_, err = s.todoTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return domain.Todo{}, domain.ErrNotFound
		}
		return domain.Todo{}, err
	}
	return s.getTodo(ctx, id)
}

// DeleteTodo removes the todo matching id. domain.ErrNotFound is returned
// when no record matches, which callers treat as the idempotent outcome of a
// repeated delete.
func (s *Storage) DeleteTodo(ctx context.Context, id string) error {
	et := azcore.ETagAny
	if _, err := s.todoTable.DeleteEntity(ctx, partitionKey, id, &aztables.DeleteEntityOptions{IfMatch: &et}); err != nil {
		if isNotFound(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Storage) getTodo(ctx context.Context, id string) (domain.Todo, error) {
	resp, err := s.todoTable.GetEntity(ctx, partitionKey, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Todo{}, domain.ErrNotFound
		}
		return domain.Todo{}, err
	}
	var ent todoEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Todo{}, err
	}
	return ent.toDomain(), nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
