package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tattty/internal/domain"
	"tattty/internal/sqlinline"
	"tattty/internal/storage"
)

func TestFilePersisterRoundTrip(t *testing.T) {
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := NewFilePersister(files)
	ctx := context.Background()

	if _, err := p.Load(ctx, "abc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load missing = %v, want ErrNotFound", err)
	}
	in := domain.Draft{
		QuestionOne: "q1",
		Style:       "Japanese",
		Images:      []domain.Image{{Filename: "a.png", Data: []byte{1}}},
	}
	if err := p.Save(ctx, "abc", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := p.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.QuestionOne != "q1" || got.Style != "Japanese" {
		t.Fatalf("draft = %+v", got)
	}
	if len(got.Images) != 0 {
		t.Fatal("images must not be persisted")
	}
	if err := p.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

type fakeSQL struct {
	queries []string
	args    [][]any
	row     fakeRow
	tag     pgconn.CommandTag
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return f.tag, nil
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return f.row
}

func TestPostgresPersisterQueries(t *testing.T) {
	db := &fakeSQL{row: fakeRow{data: []byte(`{"questionOne":"from db","mood":"Calm"}`)}}
	p := NewPostgresPersister(db)
	ctx := context.Background()

	got, err := p.Load(ctx, "sess")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.QuestionOne != "from db" || got.Mood != "Calm" {
		t.Fatalf("draft = %+v", got)
	}
	if err := p.Save(ctx, "sess", domain.Draft{QuestionTwo: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := p.Delete(ctx, "sess"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []string{sqlinline.QSelectDraft, sqlinline.QUpsertDraft, sqlinline.QDeleteDraft}
	for i, q := range want {
		if db.queries[i] != q {
			t.Fatalf("query %d = %q", i, db.queries[i])
		}
	}
	payload, _ := db.args[1][1].(string)
	if !strings.Contains(payload, `"questionTwo":"x"`) {
		t.Fatalf("upsert payload = %q", payload)
	}
}

func TestPostgresPersisterNotFound(t *testing.T) {
	p := NewPostgresPersister(&fakeSQL{row: fakeRow{err: pgx.ErrNoRows}})
	if _, err := p.Load(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load = %v, want ErrNotFound", err)
	}
}

func TestPostgresPersisterPurgeStale(t *testing.T) {
	db := &fakeSQL{tag: pgconn.NewCommandTag("DELETE 3")}
	n, err := NewPostgresPersister(db).PurgeStale(context.Background(), 2*time.Hour)
	if err != nil || n != 3 {
		t.Fatalf("PurgeStale = %d, %v", n, err)
	}
	if db.args[0][0] != 7200 {
		t.Fatalf("ttl arg = %v", db.args[0][0])
	}
}
