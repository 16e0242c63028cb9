package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentName_FlattenShortForm(t *testing.T) {
	c := NewComponentName("com.example.mail", ".Inbox")
	assert.Equal(t, "com.example.mail.Inbox", c.Class)
	assert.Equal(t, "com.example.mail/.Inbox", c.Flatten())
}

func TestComponentName_FlattenForeignClass(t *testing.T) {
	c := ComponentName{Package: "com.example.mail", Class: "org.other.Main"}
	assert.Equal(t, "com.example.mail/org.other.Main", c.Flatten())
}

func TestParseComponentName_RoundTrip(t *testing.T) {
	tests := []ComponentName{
		{Package: "a.b", Class: "a.b.C"},
		{Package: "a.b", Class: "x.Y"},
		{Package: "a.b", Class: "a.b."},
		{Package: "p", Class: "."},
		{Package: "com.mail", Class: "deep/link"},
		{Package: "com.mail", Class: "com.mail.x/y/z"},
		NewComponentName("com.mail", ".shortcut_id"),
	}
	for _, c := range tests {
		t.Run(c.Flatten(), func(t *testing.T) {
			got, err := ParseComponentName(c.Flatten())
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
}

func TestParseComponentName_Malformed(t *testing.T) {
	for _, s := range []string{"", "no-separator", "/cls", "pkg/"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseComponentName(s)
			assert.Error(t, err)
		})
	}
}

func TestParseComponentName_KeepsLaterSeparators(t *testing.T) {
	got, err := ParseComponentName("a/b/c")
	require.NoError(t, err)
	assert.Equal(t, ComponentName{Package: "a", Class: "b/c"}, got)
}

func TestPackageKey(t *testing.T) {
	k := PackageKey("com.example", 10)
	assert.Equal(t, "com.example", k.Component.Package)
	assert.Equal(t, "com.example.", k.Component.Class)
	assert.Equal(t, UserHandle(10), k.User)

	other := NewComponentKey(NewComponentName("com.example", ".Main"), 10)
	assert.NotEqual(t, k, other)
}

func TestComponentKey_Equality(t *testing.T) {
	a := NewComponentKey(NewComponentName("p", ".A"), 0)
	b := NewComponentKey(NewComponentName("p", ".A"), 0)
	c := NewComponentKey(NewComponentName("p", ".A"), 10)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	m := map[ComponentKey]int{a: 1}
	assert.Equal(t, 1, m[b])
	_, ok := m[c]
	assert.False(t, ok)
}
