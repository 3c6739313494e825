package iceberg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icescan/internal/domain"
)

func TestPathResolver_Resolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		moved bool
		root  string
		ref   string
		want  string
	}{
		{
			name: "absolute uri unchanged",
			root: "s3://bucket/warehouse/t",
			ref:  "s3://other/warehouse/t/data/f1.parquet",
			want: "s3://other/warehouse/t/data/f1.parquet",
		},
		{
			name: "rooted path unchanged",
			root: "/tmp/t",
			ref:  "/var/lib/t/data/f1.parquet",
			want: "/var/lib/t/data/f1.parquet",
		},
		{
			name: "relative joined",
			root: "s3://bucket/warehouse/t",
			ref:  "metadata/snap-1.avro",
			want: "s3://bucket/warehouse/t/metadata/snap-1.avro",
		},
		{
			name: "leading slash is rooted",
			root: "/tmp/t/",
			ref:  "/data/f1.parquet",
			want: "/data/f1.parquet",
		},
		{
			name:  "moved keeps data suffix",
			moved: true,
			root:  "/tmp/copy",
			ref:   "s3://old-bucket/warehouse/t/data/a=1/f1.parquet",
			want:  "/tmp/copy/data/a=1/f1.parquet",
		},
		{
			name:  "moved keeps metadata suffix",
			moved: true,
			root:  "s3://new/t",
			ref:   "hdfs://nn:8020/warehouse/t/metadata/snap-1.avro",
			want:  "s3://new/t/metadata/snap-1.avro",
		},
		{
			name:  "moved uses last data segment",
			moved: true,
			root:  "/tmp/copy",
			ref:   "/data/warehouse/t/data/f1.parquet",
			want:  "/tmp/copy/data/f1.parquet",
		},
		{
			name:  "moved falls back to file name",
			moved: true,
			root:  "/tmp/copy",
			ref:   "s3://b/elsewhere/f1.parquet",
			want:  "/tmp/copy/f1.parquet",
		},
		{
			name:  "moved relative ref",
			moved: true,
			root:  "/tmp/copy",
			ref:   "data/f1.parquet",
			want:  "/tmp/copy/data/f1.parquet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := PathResolver{AllowMovedPaths: tt.moved}.Resolve(tt.root, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathResolver_Errors(t *testing.T) {
	t.Parallel()
	var pathErr *domain.PathError

	_, err := PathResolver{}.Resolve("/tmp/t", "")
	require.ErrorAs(t, err, &pathErr)

	_, err = PathResolver{}.Resolve("", "data/f1.parquet")
	require.ErrorAs(t, err, &pathErr)

	_, err = PathResolver{AllowMovedPaths: true}.Resolve("", "/abs/data/f1.parquet")
	require.ErrorAs(t, err, &pathErr)

	_, err = PathResolver{AllowMovedPaths: true}.Resolve("/tmp/t", "s3://b/dir/")
	require.ErrorAs(t, err, &pathErr)
}

func TestPathResolver_Idempotent(t *testing.T) {
	t.Parallel()
	root := "s3://bucket/t"
	for _, moved := range []bool{false, true} {
		r := PathResolver{AllowMovedPaths: moved}
		once, err := r.Resolve(root, "s3://elsewhere/t/data/f1.parquet")
		require.NoError(t, err)
		twice, err := r.Resolve(root, once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "moved=%v", moved)
	}
}

func TestIsAbsolute(t *testing.T) {
	t.Parallel()
	assert.True(t, IsAbsolute("s3://b/k"))
	assert.True(t, IsAbsolute("file:///tmp/x"))
	assert.True(t, IsAbsolute("abfss://c@a.dfs.core.windows.net/p"))
	assert.True(t, IsAbsolute("/tmp/x"))
	assert.False(t, IsAbsolute("data/x.parquet"))
	assert.False(t, IsAbsolute("c:data"))
}
