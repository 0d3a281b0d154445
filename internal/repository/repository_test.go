package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/deppfellow/user-service/internal/database"
	"github.com/deppfellow/user-service/internal/database/dbtest"
	"github.com/deppfellow/user-service/internal/retry"
	"github.com/deppfellow/user-service/internal/storage"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

var (
	uniqueViolation = &pgconn.PgError{Code: "23505", TableName: "roles", ConstraintName: "roles_name_key"}
	fkViolation     = &pgconn.PgError{Code: "23503", TableName: "accounts", Message: "update or delete on table \"roles\" violates foreign key constraint \"accounts_role_id_fkey\" on table \"accounts\""}
	deadlock        = &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	syntaxError     = &pgconn.PgError{Code: "42601", Message: "syntax error at or near \"FORM\""}
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestDB(pool database.Pool) *database.Database {
	policy := retry.New(
		retry.WithMaxRetries(3),
		retry.WithBackoff(retry.ConstantBackoff(0)),
	)
	return database.NewWithPool(pool, policy, nopLogger(), 0)
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	uploads   int
	deleted   []string
	deleteErr error
	uploadErr error
}

func newMemStore(files ...string) *memStore {
	s := &memStore{files: map[string][]byte{}}
	for _, f := range files {
		s.files[f] = []byte("seed")
	}
	return s
}

func (s *memStore) Upload(ctx context.Context, u *storage.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads++
	name := fmt.Sprintf("img-%d.png", s.uploads)
	s.files[name] = []byte(u.Filename)
	return name, nil
}

func (s *memStore) Delete(ctx context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	name := storage.FileName(reference)
	delete(s.files, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *memStore) URL(baseURL, fileName string) string {
	return strings.TrimRight(baseURL, "/") + "/images/" + fileName
}

func (s *memStore) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

type recordingCleanup struct {
	mu         sync.Mutex
	references []string
}

func (c *recordingCleanup) ScheduleImageCleanup(ctx context.Context, reference string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.references = append(c.references, reference)
	return nil
}

// router answers statements by their exact SQL text.
type router map[string]func(dbtest.Statement) dbtest.Result

func (r router) handle(s dbtest.Statement) dbtest.Result {
	if h, ok := r[s.SQL]; ok {
		return h(s)
	}
	if strings.HasPrefix(s.SQL, "UPDATE accounts SET ") {
		if h, ok := r["UPDATE accounts"]; ok {
			return h(s)
		}
	}
	return dbtest.Fail(errors.New("unexpected statement: " + s.SQL))
}

func always(res dbtest.Result) func(dbtest.Statement) dbtest.Result {
	return func(dbtest.Statement) dbtest.Result { return res }
}

func ptr[T any](v T) *T {
	return &v
}
