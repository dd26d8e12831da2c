package nanotodo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotodo/internal/validation"
	"github.com/arthur-debert/nanotodo/nanotodo/storage"
	"github.com/arthur-debert/nanotodo/nanotodo/store"
	"github.com/arthur-debert/nanotodo/testutil"
	"github.com/arthur-debert/nanotodo/types"
)

// fakeClock returns a fixed time until advanced.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

type testEnv struct {
	svc     *Service
	backend storage.Backend
	fs      *store.MockFileSystem
	clock   *fakeClock
}

func newTestService(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	mockFS := store.NewMockFileSystem()
	backend := store.NewJSONFileStore("todos.json",
		store.WithFileSystem(mockFS),
		store.WithFileLockFactory(store.NewMockFileLockFactory()),
	)
	if err := backend.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	clock := newFakeClock()
	opts = append([]Option{WithTimeFunc(clock.Now), WithIDFunc(sequentialIDs())}, opts...)
	svc := New(backend, opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return &testEnv{svc: svc, backend: backend, fs: mockFS, clock: clock}
}

func validPayload() types.Payload {
	return types.Payload{"title": "Buy milk", "dueDate": "2030-01-01T00:00:00.000Z"}
}

func mustCreate(t *testing.T, svc *Service, p types.Payload, owner string) *types.Todo {
	t.Helper()
	todo, err := svc.Create(context.Background(), p, owner)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return todo
}

func TestServiceScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	svc := env.svc

	created := mustCreate(t, svc, validPayload(), "")
	if created.Description != "" || created.Done {
		t.Errorf("expected defaults, got description=%q done=%v", created.Description, created.Done)
	}
	if created.ID == "" || created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("expected id and equal timestamps, got %+v", created)
	}

	updated, err := svc.Update(ctx, created.ID, "", types.Payload{"done": true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updatedAt %v not after %v", updated.UpdatedAt, created.UpdatedAt)
	}
	want := *created
	want.Done = true
	want.UpdatedAt = updated.UpdatedAt
	if diff := cmp.Diff(want, *updated); diff != "" {
		t.Errorf("updated todo mismatch (-want +got):\n%s", diff)
	}

	removed, err := svc.Delete(ctx, created.ID, "")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v; want true, nil", removed, err)
	}
	_, err = svc.Get(ctx, created.ID, "")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != created.ID {
		t.Errorf("expected NotFoundError for %s, got %v", created.ID, err)
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("trims fields and keeps explicit done", func(t *testing.T) {
		env := newTestService(t)
		todo := mustCreate(t, env.svc, types.Payload{
			"title":       "  Water plants \t",
			"description": "\n every two days  ",
			"dueDate":     " 2030-05-01 ",
			"done":        true,
		}, "o")

		if todo.Title != "Water plants" || todo.Description != "every two days" || todo.DueDate != "2030-05-01" {
			t.Errorf("fields not trimmed: %+v", todo)
		}
		if !todo.Done {
			t.Error("explicit done=true should be kept")
		}
		if todo.OwnerKey != "o" {
			t.Errorf("owner = %q, want o", todo.OwnerKey)
		}
	})

	t.Run("timestamps are utc milliseconds", func(t *testing.T) {
		env := newTestService(t)
		env.clock.Advance(123456789 * time.Nanosecond)
		todo := mustCreate(t, env.svc, validPayload(), "")
		if todo.CreatedAt.Location() != time.UTC {
			t.Errorf("expected UTC, got %v", todo.CreatedAt.Location())
		}
		if todo.CreatedAt.Nanosecond()%int(time.Millisecond) != 0 {
			t.Errorf("expected millisecond precision, got %v", todo.CreatedAt)
		}
	})

	t.Run("client supplied id and timestamps are ignored", func(t *testing.T) {
		env := newTestService(t)
		p := validPayload()
		p["id"] = "mine"
		p["createdAt"] = "1999-01-01T00:00:00Z"
		p["color"] = "blue"
		todo := mustCreate(t, env.svc, p, "")
		if todo.ID == "mine" || todo.CreatedAt.Year() == 1999 {
			t.Errorf("client fields leaked into todo: %+v", todo)
		}
	})

	t.Run("aliases", func(t *testing.T) {
		env := newTestService(t)
		todo := mustCreate(t, env.svc, types.Payload{"name": "Legacy title", "completed": true, "dueDate": "2030-01-01"}, "")
		if todo.Title != "Legacy title" || !todo.Done {
			t.Errorf("aliases not applied: %+v", todo)
		}
	})

	rejects := []struct {
		name    string
		payload types.Payload
		field   string
	}{
		{"title too short", types.Payload{"title": "abc", "dueDate": "2030-01-01"}, "title"},
		{"padded title too short", types.Payload{"title": "  abc  ", "dueDate": "2030-01-01"}, "title"},
		{"title too long", types.Payload{"title": strings.Repeat("x", 101), "dueDate": "2030-01-01"}, "title"},
		{"title missing", types.Payload{"dueDate": "2030-01-01"}, "title"},
		{"description too long", types.Payload{"title": "Long one", "description": strings.Repeat("d", 501), "dueDate": "2030-01-01"}, "description"},
		{"bad due date", types.Payload{"title": "Buy milk", "dueDate": "not-a-date"}, "dueDate"},
		{"due date missing", types.Payload{"title": "Buy milk"}, "dueDate"},
		{"done not boolean", types.Payload{"title": "Buy milk", "dueDate": "2030-01-01", "done": "yes"}, "done"},
	}
	for _, tc := range rejects {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			env := newTestService(t)
			_, err := env.svc.Create(ctx, tc.payload, "")

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
				t.Errorf("sentinel mismatch for %v", err)
			}
			if diff := cmp.Diff([]string{tc.field}, ve.Fields()); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}

			todos, _ := env.svc.List(ctx, "")
			if len(todos) != 0 {
				t.Errorf("rejected create wrote %d todos", len(todos))
			}
			if env.fs.Writes != 0 {
				t.Errorf("rejected create wrote the file %d times", env.fs.Writes)
			}
		})
	}

	t.Run("boundaries accepted", func(t *testing.T) {
		env := newTestService(t)
		mustCreate(t, env.svc, types.Payload{"title": "abcd", "dueDate": "2030-01-01"}, "")
		mustCreate(t, env.svc, types.Payload{"title": strings.Repeat("t", 100), "dueDate": "2030-01-01"}, "")
		mustCreate(t, env.svc, types.Payload{
			"title":       "Exactly five hundred",
			"description": strings.Repeat("d", 500),
			"dueDate":     "2030-01-01",
		}, "")
	})

	t.Run("optional due date policy", func(t *testing.T) {
		env := newTestService(t, WithRules(Rules{DueDateRequired: false}))
		todo := mustCreate(t, env.svc, types.Payload{"title": "No deadline"}, "")
		if todo.DueDate != "" {
			t.Errorf("expected empty dueDate, got %q", todo.DueDate)
		}
	})

	t.Run("every violation is reported", func(t *testing.T) {
		env := newTestService(t)
		_, err := env.svc.Create(ctx, types.Payload{"title": "ab", "description": 7, "done": "no"}, "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		want := []types.FieldError{
			{Field: "title", Message: validation.MsgTitleLength},
			{Field: "description", Message: validation.MsgDescriptionLength},
			{Field: "dueDate", Message: validation.MsgDueDateRequired},
			{Field: "done", Message: validation.MsgDoneMustBeBoolean},
		}
		if diff := cmp.Diff(want, ve.Errors); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty patch only refreshes updatedAt", func(t *testing.T) {
		env := newTestService(t)
		created := mustCreate(t, env.svc, validPayload(), "")

		once, err := env.svc.Update(ctx, created.ID, "", types.Payload{})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		twice, err := env.svc.Update(ctx, created.ID, "", types.Payload{})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		ignoreUpdatedAt := func(todo types.Todo) types.Todo {
			todo.UpdatedAt = time.Time{}
			return todo
		}
		if diff := cmp.Diff(ignoreUpdatedAt(*created), ignoreUpdatedAt(*once)); diff != "" {
			t.Errorf("first empty update changed fields (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(ignoreUpdatedAt(*once), ignoreUpdatedAt(*twice)); diff != "" {
			t.Errorf("second empty update changed fields (-want +got):\n%s", diff)
		}
	})

	t.Run("absent fields are kept and null means absent", func(t *testing.T) {
		env := newTestService(t)
		created := mustCreate(t, env.svc, types.Payload{
			"title": "Original", "description": "keep me", "dueDate": "2030-01-01",
		}, "")

		updated, err := env.svc.Update(ctx, created.ID, "", types.Payload{"title": " Renamed ", "description": nil})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if updated.Title != "Renamed" || updated.Description != "keep me" || updated.DueDate != "2030-01-01" {
			t.Errorf("unexpected update result: %+v", updated)
		}
	})

	t.Run("invalid patch writes nothing", func(t *testing.T) {
		env := newTestService(t)
		created := mustCreate(t, env.svc, validPayload(), "")
		writes := env.fs.Writes

		_, err := env.svc.Update(ctx, created.ID, "", types.Payload{"title": "ok title", "dueDate": "2030-13-45"})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if env.fs.Writes != writes {
			t.Error("invalid update must not write")
		}
		got, _ := env.svc.Get(ctx, created.ID, "")
		if diff := cmp.Diff(created, got); diff != "" {
			t.Errorf("todo changed (-want +got):\n%s", diff)
		}
	})

	t.Run("validation is reported before not found", func(t *testing.T) {
		env := newTestService(t)
		_, err := env.svc.Update(ctx, "missing", "", types.Payload{"title": "no"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		env := newTestService(t)
		_, err := env.svc.Update(ctx, "missing", "", types.Payload{"done": true})
		var nf *NotFoundError
		if !errors.As(err, &nf) || !errors.Is(err, ErrNotFound) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestServiceToggle(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	created := mustCreate(t, env.svc, validPayload(), "")

	on, err := env.svc.Toggle(ctx, created.ID, "")
	if err != nil || !on.Done {
		t.Fatalf("first Toggle = %+v, %v", on, err)
	}
	off, err := env.svc.Toggle(ctx, created.ID, "")
	if err != nil || off.Done {
		t.Fatalf("second Toggle = %+v, %v", off, err)
	}
	if !off.UpdatedAt.After(on.UpdatedAt) {
		t.Error("toggle should advance updatedAt")
	}

	if _, err := env.svc.Toggle(ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	created := mustCreate(t, env.svc, validPayload(), "")

	first, err := env.svc.Delete(ctx, created.ID, "")
	if err != nil || !first {
		t.Fatalf("first Delete = %v, %v; want true", first, err)
	}
	second, err := env.svc.Delete(ctx, created.ID, "")
	if err != nil || second {
		t.Errorf("second Delete = %v, %v; want false", second, err)
	}
}

func TestServiceOwnerScoping(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	svc := env.svc

	a := mustCreate(t, svc, validPayload(), "owner-a")

	listB, err := svc.List(ctx, "owner-b")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listB) != 0 {
		t.Errorf("owner-b sees %d todos", len(listB))
	}
	listEmpty, _ := svc.List(ctx, "")
	if len(listEmpty) != 0 {
		t.Errorf("empty owner sees %d todos", len(listEmpty))
	}

	if _, err := svc.Get(ctx, a.ID, "owner-b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get from other owner: expected not found, got %v", err)
	}
	if _, err := svc.Update(ctx, a.ID, "owner-b", types.Payload{"done": true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update from other owner: expected not found, got %v", err)
	}
	if removed, err := svc.Delete(ctx, a.ID, "owner-b"); err != nil || removed {
		t.Errorf("Delete from other owner = %v, %v", removed, err)
	}

	got, err := svc.Get(ctx, a.ID, "owner-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("owner-a todo changed (-want +got):\n%s", diff)
	}
}

func TestServiceOwnerRequired(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, WithOwnerRequired(true))
	svc := env.svc

	checks := map[string]func() error{
		"list":   func() error { _, err := svc.List(ctx, ""); return err },
		"get":    func() error { _, err := svc.Get(ctx, "x", ""); return err },
		"create": func() error { _, err := svc.Create(ctx, types.Payload{}, ""); return err },
		"update": func() error { _, err := svc.Update(ctx, "x", "", types.Payload{"title": 1}); return err },
		"delete": func() error { _, err := svc.Delete(ctx, "x", ""); return err },
		"toggle": func() error { _, err := svc.Toggle(ctx, "x", ""); return err },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			var pe *PreconditionError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PreconditionError, got %v", err)
			}
			if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
				t.Errorf("precondition error matches other sentinels: %v", err)
			}
		})
	}

	if _, err := svc.Create(ctx, validPayload(), "someone"); err != nil {
		t.Errorf("Create with owner failed: %v", err)
	}
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		env := newTestService(t)
		first := mustCreate(t, env.svc, validPayload(), "")
		env.clock.Advance(time.Second)
		second := mustCreate(t, env.svc, validPayload(), "")

		todos, err := env.svc.List(ctx, "")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(todos) != 2 || todos[0].ID != second.ID || todos[1].ID != first.ID {
			t.Errorf("unexpected order: %v", todos)
		}
	})

	t.Run("same instant creates still get distinct increasing stamps", func(t *testing.T) {
		env := newTestService(t)
		var ids []string
		for i := 0; i < 3; i++ {
			ids = append(ids, mustCreate(t, env.svc, validPayload(), "").ID)
		}
		todos, _ := env.svc.List(ctx, "")
		var got []string
		for _, todo := range todos {
			got = append(got, todo.ID)
		}
		want := []string{ids[2], ids[1], ids[0]}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fixture order breaks ties by id", func(t *testing.T) {
		env := newTestService(t)
		u := testutil.LoadUniverse(t, env.backend)

		todos, err := env.svc.List(ctx, testutil.OwnerAlice)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		testutil.AssertIDs(t, todos, u.WaterPlants.ID, u.FileTaxes.ID, u.BuyMilk.ID)

		anonymous, err := env.svc.List(ctx, testutil.OwnerNone)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		testutil.AssertTodos(t, []types.Todo{u.CafeRun}, anonymous)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		env := newTestService(t)
		todos, err := env.svc.List(ctx, "nobody")
		if err != nil || todos == nil {
			t.Errorf("List = %#v, %v", todos, err)
		}
	})
}

// failingBackend fails every call with err.
type failingBackend struct {
	err error
}

func (b failingBackend) Init(context.Context) error { return b.err }
func (b failingBackend) FindAll(context.Context, string) ([]types.Todo, error) {
	return nil, b.err
}
func (b failingBackend) FindByID(context.Context, string, string) (*types.Todo, error) {
	return nil, b.err
}
func (b failingBackend) Insert(context.Context, types.Todo) (*types.Todo, error) {
	return nil, b.err
}
func (b failingBackend) ReplaceOrMerge(context.Context, string, string, types.Patch) (*types.Todo, error) {
	return nil, b.err
}
func (b failingBackend) Remove(context.Context, string, string) (bool, error) { return false, b.err }
func (b failingBackend) Close() error                                         { return nil }

var _ storage.Backend = failingBackend{}

func TestServiceStorageErrors(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("disk on fire")
	svc := New(failingBackend{err: cause})

	calls := map[string]func() error{
		"list":   func() error { _, err := svc.List(ctx, ""); return err },
		"get":    func() error { _, err := svc.Get(ctx, "x", ""); return err },
		"create": func() error { _, err := svc.Create(ctx, validPayload(), ""); return err },
		"update": func() error { _, err := svc.Update(ctx, "x", "", types.Payload{"done": true}); return err },
		"delete": func() error { _, err := svc.Delete(ctx, "x", ""); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var se *StorageError
			if !errors.As(err, &se) {
				t.Fatalf("expected StorageError, got %v", err)
			}
			if se.Op != name {
				t.Errorf("Op = %q, want %q", se.Op, name)
			}
			if !errors.Is(err, cause) || !errors.Is(err, ErrStorage) {
				t.Errorf("error chain broken: %v", err)
			}
		})
	}
}

func TestStampIsMonotonic(t *testing.T) {
	clock := newFakeClock()
	svc := New(failingBackend{}, WithTimeFunc(clock.Now))

	a := svc.stamp()
	b := svc.stamp()
	clock.Advance(-time.Hour)
	c := svc.stamp()
	if !b.After(a) || !c.After(b) {
		t.Errorf("stamps not strictly increasing: %v %v %v", a, b, c)
	}
}

func TestDefaultRules(t *testing.T) {
	if !DefaultRules().DueDateRequired {
		t.Error("due date should be required by default")
	}
	if New(failingBackend{}).rules != DefaultRules() {
		t.Error("New should start from the default rules")
	}
}
