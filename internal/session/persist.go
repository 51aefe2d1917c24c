package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tattty/internal/domain"
	"tattty/internal/infra"
	"tattty/internal/sqlinline"
	"tattty/internal/storage"
)

// FilePersister stores each draft as a JSON document under drafts/<id>.json. Images are
// not part of the document.
type FilePersister struct {
	files *storage.FileStore
}

func NewFilePersister(files *storage.FileStore) *FilePersister {
	return &FilePersister{files: files}
}

func draftKey(id string) string {
	return "drafts/" + id + ".json"
}

func (p *FilePersister) Load(ctx context.Context, id string) (*domain.Draft, error) {
	data, err := p.files.Read(ctx, draftKey(id))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d domain.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("session: decode draft %s: %w", id, err)
	}
	return &d, nil
}

func (p *FilePersister) Save(ctx context.Context, id string, d domain.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("session: encode draft: %w", err)
	}
	_, err = p.files.Write(ctx, draftKey(id), data)
	return err
}

func (p *FilePersister) Delete(ctx context.Context, id string) error {
	return p.files.Delete(ctx, draftKey(id))
}

// PostgresPersister stores drafts as jsonb rows in tattty_drafts.
type PostgresPersister struct {
	sql infra.SQLExecutor
}

func NewPostgresPersister(sql infra.SQLExecutor) *PostgresPersister {
	return &PostgresPersister{sql: sql}
}

func (p *PostgresPersister) Load(ctx context.Context, id string) (*domain.Draft, error) {
	var raw []byte
	if err := p.sql.QueryRow(ctx, sqlinline.QSelectDraft, id).Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var d domain.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("session: decode draft %s: %w", id, err)
	}
	return &d, nil
}

func (p *PostgresPersister) Save(ctx context.Context, id string, d domain.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("session: encode draft: %w", err)
	}
	_, err = p.sql.Exec(ctx, sqlinline.QUpsertDraft, id, string(data))
	return err
}

func (p *PostgresPersister) Delete(ctx context.Context, id string) error {
	_, err := p.sql.Exec(ctx, sqlinline.QDeleteDraft, id)
	return err
}

// PurgeStale removes drafts not updated within ttl and returns how many were removed.
func (p *PostgresPersister) PurgeStale(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := p.sql.Exec(ctx, sqlinline.QPurgeStaleDrafts, int(ttl.Seconds()))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var (
	_ domain.DraftRepository = (*FilePersister)(nil)
	_ domain.DraftRepository = (*PostgresPersister)(nil)
)
