// Package testutil seeds backends with a small, fixed set of todos spread
// over several owners, and offers assertions shared by the store and
// service tests.
package testutil

import (
	"context"
	_ "embed"
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotodo/nanotodo/storage"
	"github.com/arthur-debert/nanotodo/types"
)

//go:embed universe.json
var universeJSON []byte

// Owner keys present in the fixture.
const (
	OwnerAlice = "alice"
	OwnerBob   = "bob"
	OwnerNone  = ""
)

// Universe provides typed access to the fixture todos.
type Universe struct {
	// alice
	BuyMilk     types.Todo // oldest of alice's
	FileTaxes   types.Todo // done; same createdAt as WaterPlants
	WaterPlants types.Todo

	// bob
	TeamMeeting types.Todo

	// empty owner key
	CafeRun types.Todo // non-ASCII title

	// Data is the fixture in the local-file layout.
	Data storage.StoreData

	// ByID indexes every todo.
	ByID map[string]types.Todo
}

// Owners returns the owner keys in the fixture, sorted.
func (u *Universe) Owners() []string {
	owners := make([]string, 0, len(u.Data))
	for owner := range u.Data {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// NewestFirst returns the expected List order for owner.
func (u *Universe) NewestFirst(owner string) []types.Todo {
	todos := append([]types.Todo(nil), u.Data[owner]...)
	storage.SortNewestFirst(todos)
	return todos
}

// ParseUniverse parses the fixture without touching any backend.
func ParseUniverse(t *testing.T) *Universe {
	t.Helper()

	var data storage.StoreData
	if err := json.Unmarshal(universeJSON, &data); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	u := &Universe{Data: data, ByID: make(map[string]types.Todo)}
	for owner, todos := range data {
		for i := range todos {
			// The empty owner's records omit ownerKey in the file.
			todos[i].OwnerKey = owner
			u.ByID[todos[i].ID] = todos[i]
		}
	}

	named := map[string]*types.Todo{
		"t-milk":    &u.BuyMilk,
		"t-taxes":   &u.FileTaxes,
		"t-plants":  &u.WaterPlants,
		"t-meeting": &u.TeamMeeting,
		"t-cafe":    &u.CafeRun,
	}
	for id, dst := range named {
		todo, ok := u.ByID[id]
		if !ok {
			t.Fatalf("fixture is missing %s", id)
		}
		*dst = todo
	}
	return u
}

// LoadUniverse inserts every fixture todo into an initialized backend.
func LoadUniverse(t *testing.T, backend storage.Backend) *Universe {
	t.Helper()
	u := ParseUniverse(t)

	ctx := context.Background()
	for _, owner := range u.Owners() {
		for _, todo := range u.Data[owner] {
			if _, err := backend.Insert(ctx, todo); err != nil {
				t.Fatalf("failed to insert fixture todo %s: %v", todo.ID, err)
			}
		}
	}
	return u
}

// AssertTodos fails the test when got differs from want, order included.
func AssertTodos(t *testing.T, want, got []types.Todo) {
	t.Helper()
	if want == nil {
		want = []types.Todo{}
	}
	if got == nil {
		got = []types.Todo{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("todos mismatch (-want +got):\n%s", diff)
	}
}

// AssertIDs fails the test when the ids of got, in order, differ from want.
func AssertIDs(t *testing.T, got []types.Todo, want ...string) {
	t.Helper()
	ids := make([]string, 0, len(got))
	for _, todo := range got {
		ids = append(ids, todo.ID)
	}
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}
