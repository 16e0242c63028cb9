package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iconcache/internal/model"
)

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	m, err := Load(filepath.Join("testdata", "device.yaml"))
	require.NoError(t, err)
	r, err := New(m)
	require.NoError(t, err)
	return r
}

func TestLoad_Device(t *testing.T) {
	r := loadTestRegistry(t)
	ctx := context.Background()

	assert.Equal(t, []model.UserHandle{0, 10}, r.Profiles(ctx))

	serial, err := r.SerialNumber(10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), serial)

	_, err = r.SerialNumber(99)
	assert.ErrorIs(t, err, ErrUnknownUser)

	assert.True(t, r.IsManaged(10))
	assert.Equal(t, "Work Mail", r.UserBadgedLabel("Mail", 10))
	assert.Equal(t, "Mail", r.UserBadgedLabel("Mail", 0))
}

func TestRegistry_PackageVisibility(t *testing.T) {
	r := loadTestRegistry(t)
	ctx := context.Background()

	info, err := r.PackageInfo(ctx, "com.example.notes", 0)
	require.NoError(t, err)
	assert.Equal(t, "Notes", info.Label)
	assert.Equal(t, int64(1690000000), info.LastUpdateTime)

	_, err = r.PackageInfo(ctx, "com.example.notes", 10)
	assert.ErrorIs(t, err, ErrPackageNotFound, "notes is owner-only")

	_, err = r.PackageInfo(ctx, "com.example.none", 0)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	pkgs, err := r.InstalledPackages(ctx)
	require.NoError(t, err)
	require.Len(t, pkgs, 3)
	assert.Equal(t, "com.example.fonts", pkgs[0].Name)
	assert.True(t, pkgs[0].DataOnly)
}

func TestRegistry_ActivitiesAndShortcuts(t *testing.T) {
	r := loadTestRegistry(t)
	ctx := context.Background()

	acts, err := r.Activities(ctx, 0)
	require.NoError(t, err)
	var names []string
	for _, a := range acts {
		names = append(names, a.Component.Flatten())
	}
	assert.Equal(t, []string{
		"com.example.mail/.Inbox",
		"com.example.mail/.Compose",
		"com.example.notes/.Main",
	}, names)

	work, err := r.Activities(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, work, 2)

	shortcuts, err := r.Shortcuts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, shortcuts, 1)
	assert.Equal(t, "compose_new", shortcuts[0].ID)
	assert.Equal(t, int64(1700000500), shortcuts[0].LastChanged)

	a, ok := r.Activity(ctx, model.NewComponentName("com.example.mail", ".Compose"), 0)
	require.True(t, ok)
	assert.Equal(t, "Compose", a.Label)
}

func TestRegistry_Icons(t *testing.T) {
	r := loadTestRegistry(t)

	img, err := r.ApplicationIcon(context.Background(), "com.example.mail", 0)
	require.NoError(t, err)
	assert.Equal(t, sourceIconSize, img.Bounds().Dx())

	_, _, _, cornerAlpha := img.At(0, 0).RGBA()
	assert.Zero(t, cornerAlpha, "circle leaves corners transparent")
	cr, cg, cb, _ := img.At(sourceIconSize/2, sourceIconSize/2).RGBA()
	assert.Equal(t, []uint32{0x33, 0x66, 0xff}, []uint32{cr >> 8, cg >> 8, cb >> 8})
}

func TestRegistry_Mutators(t *testing.T) {
	r := loadTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetVersion("com.example.mail", 4, 1710000000))
	info, err := r.PackageInfo(ctx, "com.example.mail", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.VersionCode)

	require.NoError(t, r.Uninstall("com.example.mail"))
	_, err = r.PackageInfo(ctx, "com.example.mail", 0)
	assert.ErrorIs(t, err, ErrPackageNotFound)
	assert.ErrorIs(t, r.Uninstall("com.example.mail"), ErrPackageNotFound)

	err = r.Install(PackageSpec{Name: "com.new", Label: "New", Version: 1, Icon: IconSpec{Color: "#000000"}})
	require.NoError(t, err)
	assert.False(t, r.IsInstantApp(ctx, "com.new", 0))

	err = r.Install(PackageSpec{Name: "com.bad", Icon: IconSpec{Color: "red"}})
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "users: [{id: 0, serial: 0}]\npackages: []\nextra: true\n",
			want: "field extra not found",
		},
		{
			name: "no users",
			yaml: "packages: []\n",
			want: "at least one user",
		},
		{
			name: "duplicate serial",
			yaml: "users: [{id: 0, serial: 0}, {id: 1, serial: 0}]\n",
			want: "duplicate serial",
		},
		{
			name: "bad color",
			yaml: "users: [{id: 0, serial: 0}]\npackages: [{name: a, icon: {color: '#12'}}]\n",
			want: "want #RRGGBB",
		},
		{
			name: "bad shape",
			yaml: "users: [{id: 0, serial: 0}]\npackages: [{name: a, icon: {color: '#123456', shape: star}}]\n",
			want: "want square or circle",
		},
		{
			name: "unknown package user",
			yaml: "users: [{id: 0, serial: 0}]\npackages: [{name: a, icon: {color: '#123456'}, users: [3]}]\n",
			want: "unknown user 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
