package nanotodo_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arthur-debert/nanotodo/nanotodo"
	"github.com/arthur-debert/nanotodo/nanotodo/store"
	"github.com/arthur-debert/nanotodo/types"
)

func Example() {
	ctx := context.Background()
	dir, _ := os.MkdirTemp("", "nanotodo-example")
	defer func() { _ = os.RemoveAll(dir) }()

	backend, err := store.Open(ctx, store.Config{
		Backend: store.BackendFile,
		Path:    filepath.Join(dir, "todos.json"),
	})
	if err != nil {
		fmt.Println("open:", err)
		return
	}
	svc := nanotodo.New(backend)
	defer func() { _ = svc.Close() }()

	todo, err := svc.Create(ctx, types.Payload{
		"title":   "  Buy milk ",
		"dueDate": "2030-01-01T00:00:00.000Z",
	}, "browser-1")
	if err != nil {
		fmt.Println("create:", err)
		return
	}
	fmt.Printf("%q done=%v\n", todo.Title, todo.Done)

	_, err = svc.Create(ctx, types.Payload{"title": "abc", "dueDate": "2030-01-01"}, "browser-1")
	fmt.Println(err)

	todo, _ = svc.Toggle(ctx, todo.ID, "browser-1")
	fmt.Println("done:", todo.Done)

	removed, _ := svc.Delete(ctx, todo.ID, "browser-1")
	fmt.Println("removed:", removed)
	// Output:
	// "Buy milk" done=false
	// validation failed: title: title must be 4 to 100 characters
	// done: true
	// removed: true
}
