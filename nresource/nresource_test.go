package nresource_test

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/nlib/nresource"
	"github.com/joeycumines/nlib/nscheduler"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, r *nresource.Base, loader nresource.Loader) {
	t.Helper()
	ok, err := nresource.Load(r, loader)
	require.NoError(t, err)
	require.True(t, ok)
}

// dataResource is a minimal Loader implementation standing in for the
// original's NDataResource.
type dataResource struct {
	*nresource.Base
	data        []byte
	loadErr     error
	loads       int
	blockLoad   chan struct{}
	onLoadStart func()
}

func newDataResource(path string) *dataResource {
	return &dataResource{Base: nresource.NewBase(path)}
}

func (d *dataResource) LoadInternal() error {
	d.loads++
	if d.onLoadStart != nil {
		d.onLoadStart()
	}
	if d.blockLoad != nil {
		<-d.blockLoad
	}
	if d.loadErr != nil {
		return d.loadErr
	}
	d.data = []byte("loaded:" + d.Path())
	return nil
}

func (d *dataResource) UnloadInternal() {
	d.data = nil
}

func TestLoadTransitionsToLoadedAndFiresCallback(t *testing.T) {
	r := newDataResource("a.bin")
	var firedWith *nresource.Base
	r.OnLoaded(func(b *nresource.Base) { firedWith = b })

	ok, err := nresource.Load(r.Base, r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, nresource.Loaded, r.State())
	require.Equal(t, []byte("loaded:a.bin"), r.data)
	require.Same(t, r.Base, firedWith)
}

func TestLoadIsIdempotentWhenAlreadyLoaded(t *testing.T) {
	r := newDataResource("a.bin")
	ok, err := nresource.Load(r.Base, r)
	require.NoError(t, err)
	require.True(t, ok)
	before := r.LastAccessTime()
	time.Sleep(time.Millisecond)
	ok, err = nresource.Load(r.Base, r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, r.loads)
	require.True(t, r.LastAccessTime().After(before), "re-Load on an already-Loaded resource must bump last-access")
}

func TestLoadReportsFailureWhenAlreadyLoadingElsewhere(t *testing.T) {
	r := newDataResource("a.bin")
	r.blockLoad = make(chan struct{})
	loadStarted := make(chan struct{})
	r.onLoadStart = func() { close(loadStarted) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = nresource.Load(r.Base, r)
	}()

	<-loadStarted
	ok, err := nresource.Load(r.Base, r)
	require.NoError(t, err)
	require.False(t, ok, "a concurrent in-progress load must report failure without error")

	close(r.blockLoad)
	<-done
	require.Equal(t, nresource.Loaded, r.State())
}

func TestLoadFailurePropagatesAndFiresOnLoadFailed(t *testing.T) {
	r := newDataResource("bad.bin")
	r.loadErr = errors.New("disk error")
	var gotErr error
	r.OnLoadFailed(func(b *nresource.Base, err error) { gotErr = err })

	ok, err := nresource.Load(r.Base, r)
	require.Error(t, err)
	require.False(t, ok)
	require.Equal(t, nresource.Failed, r.State())
	require.Equal(t, r.loadErr, gotErr)
}

func TestLoadRefusesWhenDependencyNotLoaded(t *testing.T) {
	dep := newDataResource("dep.bin")
	r := newDataResource("main.bin")
	r.AddDependency(dep.Base)

	ok, err := nresource.Load(r.Base, r)
	require.ErrorIs(t, err, nresource.ErrDependenciesNotLoaded)
	require.False(t, ok)
	require.Equal(t, nresource.Failed, r.State())

	_, err = nresource.Load(dep.Base, dep)
	require.NoError(t, err)
	_, err = nresource.Load(r.Base, r)
	require.NoError(t, err)
}

func TestUnloadResetsStateAndFiresCallback(t *testing.T) {
	r := newDataResource("a.bin")
	_, err := nresource.Load(r.Base, r)
	require.NoError(t, err)

	var fired bool
	r.OnUnloaded(func(b *nresource.Base) { fired = true })
	nresource.Unload(r.Base, r)

	require.Equal(t, nresource.Unloaded, r.State())
	require.Nil(t, r.data)
	require.True(t, fired)
}

func TestReloadFiresOnLoadedAndOnReloaded(t *testing.T) {
	r := newDataResource("a.bin")
	_, err := nresource.Load(r.Base, r)
	require.NoError(t, err)

	var loadedCount, reloadedCount int
	r.OnLoaded(func(b *nresource.Base) { loadedCount++ })
	r.OnReloaded(func(b *nresource.Base) { reloadedCount++ })

	require.NoError(t, nresource.Reload(r.Base, r))
	require.Equal(t, 1, loadedCount)
	require.Equal(t, 1, reloadedCount)
}

func TestLoadAsyncSettlesFuture(t *testing.T) {
	sched := nscheduler.New(2)
	defer sched.Stop()

	r := newDataResource("async.bin")
	future := nresource.LoadAsync(sched, r.Base, r)

	ok, err := future.Wait()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, nresource.Loaded, r.State())
}

func TestUnloadAsyncSettlesFuture(t *testing.T) {
	sched := nscheduler.New(2)
	defer sched.Stop()

	r := newDataResource("async.bin")
	_, err := nresource.Load(r.Base, r)
	require.NoError(t, err)

	future := nresource.UnloadAsync(sched, r.Base, r)
	_, err = future.Wait()
	require.NoError(t, err)
	require.Equal(t, nresource.Unloaded, r.State())
}

func TestTouchUpdatesLastAccessTime(t *testing.T) {
	r := newDataResource("a.bin")
	before := r.LastAccessTime()
	time.Sleep(time.Millisecond)
	r.Touch()
	require.True(t, r.LastAccessTime().After(before))
}

func TestMetadataAndTags(t *testing.T) {
	r := newDataResource("a.bin")
	r.SetMetadata("author", "nlib")
	require.Equal(t, "nlib", r.Metadata("author", ""))
	require.Equal(t, "default", r.Metadata("missing", "default"))

	r.AddTag("hot")
	require.True(t, r.HasTag("hot"))
	require.False(t, r.HasTag("cold"))
}

type dataFactory struct{}

func (dataFactory) CreateResource(path string) (*nresource.Base, nresource.Loader, error) {
	r := newDataResource(path)
	return r.Base, r, nil
}
func (dataFactory) Extensions() []string { return []string{".bin"} }
func (dataFactory) Name() string         { return "data" }
func (dataFactory) Priority() int        { return 0 }

func TestRegistryCreatesViaMatchingFactory(t *testing.T) {
	reg := nresource.NewRegistry()
	reg.Register(dataFactory{})

	base, loader, err := reg.Create("assets/level1.bin")
	require.NoError(t, err)
	require.NotNil(t, loader)
	require.Equal(t, "assets/level1.bin", base.Path())
}

func TestRegistryReturnsErrNoFactoryForUnknownExtension(t *testing.T) {
	reg := nresource.NewRegistry()
	_, _, err := reg.Create("assets/level1.xyz")
	require.Error(t, err)
	var notFound *nresource.ErrNoFactory
	require.ErrorAs(t, err, &notFound)
}
