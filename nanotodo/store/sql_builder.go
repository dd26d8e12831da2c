package store

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/arthur-debert/nanotodo/types"
)

const todosTable = "todos"

// sqlTimeLayout keeps millisecond precision and always renders UTC as "Z",
// so stored values sort lexically in time order.
const sqlTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var todoColumns = []string{"id", "title", "description", "dueDate", "done", "createdAt", "updatedAt", "ownerKey"}

// sqlBuilder wraps squirrel to keep every statement parameterized.
type sqlBuilder struct {
	sq squirrel.StatementBuilderType
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)}
}

func ownedBy(id, ownerKey string) squirrel.Eq {
	return squirrel.Eq{"id": id, "ownerKey": ownerKey}
}

func (b *sqlBuilder) selectAll(ownerKey string) (string, []interface{}, error) {
	return b.sq.Select(todoColumns...).
		From(todosTable).
		Where(squirrel.Eq{"ownerKey": ownerKey}).
		OrderBy("createdAt DESC", "id ASC").
		ToSql()
}

func (b *sqlBuilder) selectOne(id, ownerKey string) (string, []interface{}, error) {
	return b.sq.Select(todoColumns...).
		From(todosTable).
		Where(ownedBy(id, ownerKey)).
		ToSql()
}

func (b *sqlBuilder) insert(todo types.Todo) (string, []interface{}, error) {
	return b.sq.Insert(todosTable).
		Columns(todoColumns...).
		Values(
			todo.ID,
			todo.Title,
			todo.Description,
			todo.DueDate,
			boolToInt(todo.Done),
			formatSQLTime(todo.CreatedAt),
			formatSQLTime(todo.UpdatedAt),
			todo.OwnerKey,
		).
		ToSql()
}

// update builds a partial UPDATE: only the fields set in the patch are
// written, plus updatedAt.
func (b *sqlBuilder) update(id, ownerKey string, patch types.Patch) (string, []interface{}, error) {
	if patch.UpdatedAt.IsZero() {
		return "", nil, fmt.Errorf("patch has no updatedAt")
	}
	q := b.sq.Update(todosTable).Set("updatedAt", formatSQLTime(patch.UpdatedAt))
	if patch.Title != nil {
		q = q.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		q = q.Set("description", *patch.Description)
	}
	if patch.DueDate != nil {
		q = q.Set("dueDate", *patch.DueDate)
	}
	if patch.Done != nil {
		q = q.Set("done", boolToInt(*patch.Done))
	}
	return q.Where(ownedBy(id, ownerKey)).ToSql()
}

func (b *sqlBuilder) delete(id, ownerKey string) (string, []interface{}, error) {
	return b.sq.Delete(todosTable).Where(ownedBy(id, ownerKey)).ToSql()
}

func formatSQLTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func parseSQLTime(s string) (time.Time, error) {
	t, err := time.Parse(sqlTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
