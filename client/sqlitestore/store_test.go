package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/andrebq/doorman/client"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "nested", "session.db")
	s, err := Open(ctx, file)
	if err != nil {
		t.Fatal(err)
	}

	_, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)

	session := client.Session{Token: "abc", User: &client.User{ID: "1", Email: "a@x.com"}}
	require.NoError(t, s.Save(ctx, session))
	session.Token = "def"
	require.NoError(t, s.Save(ctx, session))
	require.NoError(t, s.Close())

	// survives a restart
	s, err = Open(ctx, file)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	loaded, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, session, loaded)

	require.NoError(t, s.Clear(ctx))
	_, found, err = s.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)
}
