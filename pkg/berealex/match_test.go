package berealex

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMediaPath(t *testing.T) {
	tests := []struct {
		name string
		role Role
		ref  string
		want string
	}{
		{
			name: "user id segment dropped",
			role: RoleBack,
			ref:  "/Photos/post/a1b2c3/img.webp",
			want: filepath.Join("Photos", "post", "img.webp"),
		},
		{
			name: "nested path keeps remainder",
			role: RoleBTS,
			ref:  "/Photos/bts/a1b2c3/2022/clip.mp4",
			want: filepath.Join("Photos", "bts", "2022", "clip.mp4"),
		},
		{
			name: "short path passes through",
			role: RoleRealmoji,
			ref:  "/Photos/realmoji/moji.webp",
			want: filepath.Join("Photos", "realmoji", "moji.webp"),
		},
		{
			name: "post url resolves by basename",
			role: RoleFront,
			ref:  "https://cdn.example.com/some/long/path/img.webp?sig=abc",
			want: filepath.Join("Photos", "post", "img.webp"),
		},
		{
			name: "realmoji url resolves by basename",
			role: RoleRealmoji,
			ref:  "https://cdn.example.com/x/moji.webp",
			want: filepath.Join("Photos", "realmoji", "moji.webp"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMediaPath("/root", tt.role, tt.ref)
			assert.Equal(t, filepath.Join("/root", tt.want), got)
		})
	}
}

func TestMatchFiles_SkipsMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Photos", "post", "front1.webp"), "f")

	rec := &ExportRecord{
		ID:       "memories-0",
		Category: CategoryMemories,
		Taken:    time.Date(2022, 6, 15, 10, 0, 0, 0, time.UTC),
		Files: []RecordFile{
			{Role: RoleFront, ManifestPath: "/Photos/post/uid/front1.webp"},
			{Role: RoleBack, ManifestPath: "/Photos/post/uid/back1.webp"},
		},
	}

	found, missing := MatchFiles(root, rec)
	require.Len(t, found, 1)
	assert.Equal(t, 1, missing)
	assert.Equal(t, RoleFront, found[0].Role)
	assert.Equal(t, KindImage, found[0].Kind)
}

func TestKindForExt(t *testing.T) {
	assert.Equal(t, KindImage, KindForExt(".webp"))
	assert.Equal(t, KindImage, KindForExt("JPG"))
	assert.Equal(t, KindVideo, KindForExt(".mp4"))
	assert.Equal(t, KindUnknown, KindForExt(".txt"))
}
