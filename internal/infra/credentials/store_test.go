package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeSQL records the last Exec and answers QueryRow with a fixed row.
type fakeSQL struct {
	row       fakeRow
	execErr   error
	lastQuery string
	lastArgs  []any
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.lastQuery, f.lastArgs = query, args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.lastQuery, f.lastArgs = query, args
	return f.row
}

func (f *fakeSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unused")
}

type fakeRow struct {
	token     string
	updatedAt time.Time
	err       error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 2 {
		return errors.New("want token and updated_at")
	}
	*dest[0].(*string) = r.token
	*dest[1].(*time.Time) = r.updatedAt
	return nil
}

func TestSelection(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		name    string
		row     fakeRow
		wantKey string
		wantOK  bool
		wantErr bool
	}{
		{name: "stored", row: fakeRow{token: " abc123 ", updatedAt: at}, wantKey: "abc123", wantOK: true},
		{name: "none", row: fakeRow{err: pgx.ErrNoRows}},
		{name: "blank", row: fakeRow{token: "  ", updatedAt: at}},
		{name: "db error", row: fakeRow{err: errors.New("conn reset")}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := &fakeSQL{row: tc.row}
			sel, ok, err := NewStore(db).Selection(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Selection err = %v, wantErr %v", err, tc.wantErr)
			}
			if sel.Key != tc.wantKey || ok != tc.wantOK {
				t.Fatalf("Selection = %q (%v), want %q (%v)", sel.Key, ok, tc.wantKey, tc.wantOK)
			}
			if tc.wantOK && !sel.UpdatedAt.Equal(at) {
				t.Fatalf("UpdatedAt = %v, want %v", sel.UpdatedAt, at)
			}
			if db.lastArgs[0] != ProviderVeo {
				t.Fatalf("provider arg = %v, want %q", db.lastArgs[0], ProviderVeo)
			}
		})
	}
}

func TestSetCredential(t *testing.T) {
	db := &fakeSQL{}
	store := NewStore(db)
	store.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }

	if err := store.SetCredential(context.Background(), " fresh "); err != nil {
		t.Fatalf("SetCredential returned error: %v", err)
	}
	if !strings.Contains(db.lastQuery, "on conflict (provider)") {
		t.Fatalf("unexpected query: %s", db.lastQuery)
	}
	if db.lastArgs[0] != ProviderVeo || db.lastArgs[1] != "fresh" {
		t.Fatalf("args = %v", db.lastArgs)
	}
	var props map[string]string
	if err := json.Unmarshal(db.lastArgs[2].([]byte), &props); err != nil {
		t.Fatalf("decode properties: %v", err)
	}
	if props["selected_at"] != "2025-06-01T09:30:00Z" {
		t.Fatalf("selected_at = %q", props["selected_at"])
	}

	if err := store.SetCredential(context.Background(), " "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("blank key err = %v, want ErrEmptyKey", err)
	}
}

func TestCredentialReadsSelection(t *testing.T) {
	store := NewStore(&fakeSQL{row: fakeRow{token: "restored", updatedAt: time.Now()}})
	key, err := store.Credential(context.Background())
	if err != nil || key != "restored" {
		t.Fatalf("Credential = %q (%v), want restored", key, err)
	}
}

func TestClearAndEnsureSchema(t *testing.T) {
	db := &fakeSQL{}
	store := NewStore(db)
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if !strings.Contains(db.lastQuery, "delete from api_credentials") || db.lastArgs[0] != ProviderVeo {
		t.Fatalf("unexpected clear: %s %v", db.lastQuery, db.lastArgs)
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	if !strings.Contains(db.lastQuery, "create table if not exists api_credentials") {
		t.Fatalf("unexpected schema query: %s", db.lastQuery)
	}

	db.execErr = errors.New("read-only")
	if err := store.Clear(context.Background()); err == nil {
		t.Fatalf("Clear swallowed the exec error")
	}
}
