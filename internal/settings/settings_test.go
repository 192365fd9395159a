package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_MergesOverDefaults(t *testing.T) {
	s := FromMap(map[string]string{
		KeyMode:        "direct",
		KeyBaseURL:     "https://aton.example",
		KeyTokenPrefix: "",
	})

	assert.Equal(t, ModeDirect, s.Mode)
	assert.Equal(t, "https://aton.example", s.BaseURL)
	assert.Equal(t, "", s.TokenPrefix, "present empty key overrides the default")
	assert.Equal(t, "/produtos", s.ProductsEndpoint)
	assert.Equal(t, "/produtos/{id}", s.ProductByIDEndpoint)
	assert.Equal(t, "q", s.SearchParam)
	assert.Equal(t, "Authorization", s.TokenHeader)
}

func TestFromMap_EmptyRecordYieldsDefaults(t *testing.T) {
	assert.Equal(t, Defaults(), FromMap(nil))
	assert.Equal(t, Defaults(), FromMap(map[string]string{}))
}

func TestFromMap_Modes(t *testing.T) {
	assert.Equal(t, ModeRelay, FromMap(map[string]string{KeyMode: "proxy"}).Mode)
	assert.Equal(t, ModeRelay, FromMap(map[string]string{KeyMode: "RELAY"}).Mode)
	assert.Equal(t, ModeRelay, FromMap(map[string]string{KeyMode: "carrier-pigeon"}).Mode)
}

func TestNormalize(t *testing.T) {
	s := Settings{
		Mode:        "direct",
		BaseURL:     "  https://aton.example  ",
		TokenHeader: " ",
		TokenPrefix: "Token ",
		Token:       " secret ",
	}.Normalize()

	assert.Equal(t, ModeDirect, s.Mode)
	assert.Equal(t, "https://aton.example", s.BaseURL)
	assert.Equal(t, "Authorization", s.TokenHeader)
	assert.Equal(t, "Token ", s.TokenPrefix)
	assert.Equal(t, "secret", s.Token)
	assert.Equal(t, "/produtos", s.ProductsEndpoint)
	assert.Equal(t, "/produtos/{id}", s.ProductByIDEndpoint)
	assert.Equal(t, "q", s.SearchParam)
}

func TestTarget(t *testing.T) {
	s := Defaults()
	s.BaseURL = "https://direct.example"
	assert.Equal(t, "http://localhost:3000", s.Target())

	s.Mode = ModeDirect
	assert.Equal(t, "https://direct.example", s.Target())
}

func TestRoundTripThroughMap(t *testing.T) {
	s := Defaults()
	s.Token = "abc"
	assert.Equal(t, s, FromMap(s.ToMap()))
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		BackendMemory: NewMemoryStore(),
		BackendFile:   NewFileStore(filepath.Join(dir, "nested", "settings.json")),
		BackendSQLite: sqliteStore,
	}
}

func TestStores_LoadEmptyThenSaveAndOverwrite(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			values, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, values)

			require.NoError(t, store.Save(ctx, map[string]string{"a": "1", "b": "2"}))
			require.NoError(t, store.Save(ctx, map[string]string{"a": "3"}))

			values, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "3"}, values)
		})
	}
}

func TestSQLiteStore_InMemoryConcurrentUse(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- store.Save(ctx, map[string]string{"n": fmt.Sprint(i)})
		}(i)
		go func() {
			defer wg.Done()
			_, err := store.Load(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, values, "n")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore("", filepath.Join(dir, "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = NewStore(BackendSQLite, filepath.Join(dir, "s.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	store.(*SQLiteStore).Close()

	_, err = NewStore("etcd", "")
	assert.Error(t, err)
}

func TestManager_InitWritesMergedRecordBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, map[string]string{KeyToken: "persisted"}))

	manager := NewManager(store)
	require.NoError(t, manager.Init(ctx))

	assert.Equal(t, "persisted", manager.Current().Token)
	assert.Equal(t, ModeRelay, manager.Current().Mode)

	values, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", values[KeyToken])
	assert.Equal(t, "/produtos", values[KeyProductsEndpoint])
	assert.Len(t, values, 9)
}

func TestManager_UpdatePersistsNormalized(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	manager := NewManager(store)
	require.NoError(t, manager.Init(ctx))

	updated, err := manager.Update(ctx, Settings{Mode: ModeDirect, BaseURL: " https://x.example ", SearchParam: ""})
	require.NoError(t, err)

	assert.Equal(t, "https://x.example", updated.BaseURL)
	assert.Equal(t, "q", updated.SearchParam)
	assert.Equal(t, updated, manager.Current())

	reloaded := NewManager(store)
	require.NoError(t, reloaded.Init(ctx))
	assert.Equal(t, updated, reloaded.Current())
}

func TestStatic(t *testing.T) {
	s := Defaults()
	s.Token = "t"
	assert.Equal(t, s, Static(s).Current())
}
