package iconcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/iconcache/internal/engine"
	"github.com/roach88/iconcache/internal/model"
)

const (
	testRelease   = 1
	testPixelSize = 32
)

var errNoPackage = errors.New("package not installed")

// fakeRegistry is an in-memory PackageRegistry and UserDirectory.
type fakeRegistry struct {
	mu       sync.Mutex
	packages map[string]model.PackageInfo
	managed  map[model.UserHandle]bool
}

func newFakeRegistry(pkgs ...model.PackageInfo) *fakeRegistry {
	r := &fakeRegistry{
		packages: make(map[string]model.PackageInfo),
		managed:  make(map[model.UserHandle]bool),
	}
	for _, p := range pkgs {
		r.packages[p.Name] = p
	}
	return r
}

func (r *fakeRegistry) install(p model.PackageInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[p.Name] = p
}

func (r *fakeRegistry) uninstall(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.packages, name)
}

func (r *fakeRegistry) PackageInfo(_ context.Context, pkg string, _ model.UserHandle) (model.PackageInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[pkg]
	if !ok {
		return model.PackageInfo{}, errNoPackage
	}
	return p, nil
}

func (r *fakeRegistry) InstalledPackages(context.Context) ([]model.PackageInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PackageInfo, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRegistry) ApplicationIcon(_ context.Context, pkg string, _ model.UserHandle) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packages[pkg]; !ok {
		return nil, errNoPackage
	}
	return solidImage(color.RGBA{R: 0x20, G: 0x80, B: 0x20, A: 0xff}), nil
}

func (r *fakeRegistry) UserBadgedLabel(label string, user model.UserHandle) string {
	if r.IsManaged(user) {
		return "Work " + label
	}
	return label
}

func (r *fakeRegistry) SerialNumber(user model.UserHandle) (int64, error) {
	if user < 0 {
		return 0, fmt.Errorf("unknown user %d", user)
	}
	return int64(user)*10 + 1, nil
}

func (r *fakeRegistry) IsManaged(user model.UserHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managed[user]
}

// testItem is the item type behind testLogic.
type testItem struct {
	cn    model.ComponentName
	user  model.UserHandle
	label string
	icon  image.Image
	stamp int64
}

// testLogic counts icon loads. Items with a stamp report it as their last
// update time.
type testLogic struct {
	DefaultLogic[*testItem]
	loads *int
	noMem bool
}

func newTestLogic() testLogic {
	return testLogic{loads: new(int)}
}

func (testLogic) Component(i *testItem) model.ComponentName { return i.cn }
func (testLogic) User(i *testItem) model.UserHandle         { return i.user }
func (testLogic) Label(i *testItem) string                  { return i.label }

func (l testLogic) LoadIcon(_ context.Context, r Renderer, i *testItem) (*model.BitmapInfo, error) {
	*l.loads++
	if i.icon == nil {
		return nil, errors.New("no icon")
	}
	return r.RenderIcon(i.icon, i.user, false)
}

func (l testLogic) LastUpdated(i *testItem, info model.PackageInfo) int64 {
	if i != nil && i.stamp > 0 {
		return i.stamp
	}
	return info.LastUpdateTime
}

func (l testLogic) AddToMemCache() bool { return !l.noMem }

// orderLogic records the label of every item it renders.
type orderLogic struct {
	testLogic
	order *[]string
}

func (l orderLogic) LoadIcon(ctx context.Context, r Renderer, i *testItem) (*model.BitmapInfo, error) {
	*l.order = append(*l.order, i.label)
	return l.testLogic.LoadIcon(ctx, r, i)
}

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newItem(pkg, class string, user model.UserHandle, label string) *testItem {
	return &testItem{
		cn:    model.NewComponentName(pkg, class),
		user:  user,
		label: label,
		icon:  solidImage(color.RGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}),
	}
}

func supply(i *testItem) func() (*testItem, bool) {
	return func() (*testItem, bool) { return i, i != nil }
}

func testPackage(name string, version, updated int64) model.PackageInfo {
	return model.PackageInfo{Name: name, VersionCode: version, LastUpdateTime: updated, Label: name + " app"}
}

// createTestCache builds a cache over a temp database and runs its worker
// for the duration of the test.
func createTestCache(t *testing.T, reg *fakeRegistry, mutate ...func(*Options)) *Cache {
	t.Helper()

	opts := Options{
		DBPath:         filepath.Join(t.TempDir(), "icons.db"),
		ReleaseVersion: testRelease,
		IconPixelSize:  testPixelSize,
		IconDPI:        160,
		SystemState:    model.SystemState{Locales: []string{"en-US"}, PlatformVersion: 34},
		MemCache:       MemCacheMap,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionIDs:     engine.NewFixedGenerator("session-1", "session-2", "session-3", "session-4"),
	}
	for _, m := range mutate {
		m(&opts)
	}

	c, err := New(opts, Deps{Registry: reg, Users: reg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Worker().Stopped()
		require.NoError(t, c.store.Close())
	})
	return c
}

// onWorker runs fn on the cache worker and fails the test on error.
func onWorker(t *testing.T, c *Cache, fn func(ctx context.Context)) {
	t.Helper()
	err := c.Call(context.Background(), func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	require.NoError(t, err)
}

// reconcile runs one session over items and waits for its tasks to drain.
func reconcile(t *testing.T, c *Cache, items []*testItem, logic CachingLogic[*testItem], opts ...UpdateOption) (ScanResult, int64) {
	t.Helper()

	var (
		h      *UpdateHandler
		result ScanResult
	)
	err := c.Call(context.Background(), func(ctx context.Context) error {
		var err error
		h, err = NewUpdateHandler(ctx, c, opts...)
		if err != nil {
			return err
		}
		result, err = UpdateIcons(ctx, h, items, logic, nil)
		return err
	})
	require.NoError(t, err)
	<-h.Done()

	var deleted int64
	err = c.Call(context.Background(), func(ctx context.Context) error {
		var err error
		deleted, err = h.Finish(ctx)
		return err
	})
	require.NoError(t, err)
	return result, deleted
}
