package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icescan/internal/config"
)

func TestValidateOutputFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "empty ok", output: "", wantErr: false},
		{name: "table ok", output: "table", wantErr: false},
		{name: "json ok", output: "json", wantErr: false},
		{name: "yaml rejected", output: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateOutputFormat(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDefaultOutputFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "json", defaultOutputFormat(&bytes.Buffer{}))
}

func TestPrintTable(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := printTable(&buf, []string{"path", "size"}, [][]string{
		{"s3://b/t/data/a.parquet", "10"},
		{"s3://b/t/data/bb.parquet", "200"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PATH                      SIZE\n"+
		"s3://b/t/data/a.parquet   10\n"+
		"s3://b/t/data/bb.parquet  200\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a": 1}`, buf.String())
	assert.Contains(t, buf.String(), "\n  \"a\"")
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8181", true},
		{"localhost:8181", true},
		{"[::1]:8181", true},
		{":8181", false},
		{"0.0.0.0:8181", false},
		{"10.1.2.3:80", false},
		{"not an address", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isLoopbackAddr(tt.addr))
		})
	}
}

func TestCheckServeExposure(t *testing.T) {
	t.Parallel()

	secret := "s"
	tests := []struct {
		name    string
		cfg     config.Config
		addr    string
		wantErr string
	}{
		{name: "no roots", cfg: config.Config{}, addr: "127.0.0.1:8181", wantErr: "no table locations"},
		{name: "loopback without auth", cfg: config.Config{APIAllowedRoots: []string{"s3://w"}}, addr: "127.0.0.1:8181"},
		{name: "public without auth", cfg: config.Config{APIAllowedRoots: []string{"s3://w"}}, addr: ":8181", wantErr: "refusing"},
		{name: "public with api key", cfg: config.Config{APIAllowedRoots: []string{"s3://w"}, APIKeys: []string{"k"}}, addr: ":8181"},
		{name: "public with jwt", cfg: config.Config{APIAllowedRoots: []string{"s3://w"}, APIJWTSecret: &secret}, addr: "0.0.0.0:8181"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkServeExposure(&tt.cfg, tt.addr)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
