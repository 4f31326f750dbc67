package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"veoqueue/internal/infra"
	"veoqueue/internal/sqlinline"
)

// ProviderVeo is the row holding the Veo API key.
const ProviderVeo = "veo"

// ErrEmptyKey is returned when selecting a blank API key.
var ErrEmptyKey = errors.New("credentials: api key is required")

// Selection is the stored API key and when it was last chosen.
type Selection struct {
	Key       string
	UpdatedAt time.Time
}

// Store persists the selected API key in Postgres. It satisfies
// auth.CredentialSource.
type Store struct {
	sql      infra.SQLExecutor
	provider string
	now      func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, provider: ProviderVeo, now: time.Now}
}

// EnsureSchema creates the credential table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QEnsureCredentialTable)
	return err
}

// Selection reads the stored key. ok is false when none has been selected.
func (s *Store) Selection(ctx context.Context) (sel Selection, ok bool, err error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCredential, s.provider)
	if err := row.Scan(&sel.Key, &sel.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return Selection{}, false, nil
		}
		return Selection{}, false, err
	}
	sel.Key = strings.TrimSpace(sel.Key)
	return sel, sel.Key != "", nil
}

func (s *Store) Credential(ctx context.Context) (string, error) {
	sel, _, err := s.Selection(ctx)
	return sel.Key, err
}

func (s *Store) SetCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	props, err := json.Marshal(map[string]any{
		"selected_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertCredential, s.provider, key, props)
	return err
}

// Clear forgets the stored key.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteCredential, s.provider)
	return err
}
