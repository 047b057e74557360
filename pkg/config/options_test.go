package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionFrom(t *testing.T, body string) *Section {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.ReadFrom(strings.NewReader("[routing:test]\n"+body), "options.cfg"))
	section, err := s.Get("routing", "test")
	require.NoError(t, err)
	return section
}

func TestOptionReader_String(t *testing.T) {
	section := sectionFrom(t, "name = value\nempty =\n")

	tests := []struct {
		name     string
		option   string
		required []string
		defaults map[string]string
		want     string
		wantErr  string
	}{
		{name: "present", option: "name", want: "value"},
		{name: "missing optional", option: "other", want: ""},
		{name: "missing optional with default", option: "other", defaults: map[string]string{"other": "dflt"}, want: "dflt"},
		{name: "empty optional with default", option: "empty", defaults: map[string]string{"empty": "dflt"}, want: "dflt"},
		{name: "missing required", option: "other", required: []string{"other"}, wantErr: "is required"},
		{name: "empty required", option: "empty", required: []string{"empty"}, wantErr: "is required and needs a value"},
		{name: "case insensitive", option: "NAME", required: []string{"Name"}, want: "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewOptionReader(section, tt.required, tt.defaults)
			got, err := r.String(tt.option)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.ErrorIs(t, err, ErrMissingOption)
				assert.Contains(t, err.Error(), "[routing:test]")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionReader_TCPPort(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{value: "1", want: 1},
		{value: "7001", want: 7001},
		{value: "65535", want: 65535},
		{value: "0x1F41", want: 8001},
		{value: "0", wantErr: true},
		{value: "-1", wantErr: true},
		{value: "65536", wantErr: true},
		{value: "99999999999999999999", wantErr: true},
		{value: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := NewOptionReader(sectionFrom(t, "port = "+tt.value+"\n"), nil, nil)
			got, err := r.TCPPort("port")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidValue)
				assert.Contains(t, err.Error(), "needs value between 1 and 65535 inclusive, was '"+tt.value+"'")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionReader_TCPPortDefault(t *testing.T) {
	r := NewOptionReader(sectionFrom(t, ""), nil, map[string]string{"port": "3306"})
	port, err := r.TCPPort("port")
	require.NoError(t, err)
	assert.Equal(t, 3306, port)

	r = NewOptionReader(sectionFrom(t, ""), nil, nil)
	port, err = r.TCPPort("port")
	require.NoError(t, err)
	assert.Zero(t, port)
}

func TestOptionReader_TCPAddress(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		requirePort bool
		defaultPort int
		want        TCPAddress
		wantErr     string
	}{
		{name: "host and port", value: "127.0.0.1:7001", want: TCPAddress{Host: "127.0.0.1", Port: 7001}},
		{name: "host only", value: "localhost", want: TCPAddress{Host: "localhost"}},
		{name: "default port", value: "localhost", defaultPort: 3306, want: TCPAddress{Host: "localhost", Port: 3306}},
		{name: "explicit port wins", value: "localhost:13306", defaultPort: 3306, want: TCPAddress{Host: "localhost", Port: 13306}},
		{name: "ipv6 bracketed", value: "[::1]:7002", want: TCPAddress{Host: "::1", Port: 7002}},
		{name: "ipv6 bare", value: "::1", want: TCPAddress{Host: "::1"}},
		{name: "port required", value: "localhost", requirePort: true, wantErr: "TCP port missing"},
		{name: "bad port", value: "localhost:99999", wantErr: "is incorrect"},
		{name: "bad ipv6", value: "[::1", wantErr: "is incorrect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewOptionReader(sectionFrom(t, "bind_address = "+tt.value+"\n"), nil, nil)
			got, err := r.TCPAddress("bind_address", tt.requirePort, tt.defaultPort)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTCPAddress_String(t *testing.T) {
	assert.Equal(t, "127.0.0.1:80", TCPAddress{Host: "127.0.0.1", Port: 80}.String())
	assert.Equal(t, "[::1]:80", TCPAddress{Host: "::1", Port: 80}.String())
	assert.Equal(t, "localhost", TCPAddress{Host: "localhost"}.String())
	assert.True(t, TCPAddress{}.IsZero())
}

func TestOptionReader_NamedSocket(t *testing.T) {
	dir := t.TempDir()

	fresh := filepath.Join(dir, "router.sock")
	r := NewOptionReader(sectionFrom(t, "socket = "+fresh+"\n"), nil, nil)
	got, err := r.NamedSocket("socket")
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	existing := filepath.Join(dir, "existing.sock")
	require.NoError(t, os.WriteFile(existing, nil, 0600))
	r = NewOptionReader(sectionFrom(t, "socket = "+existing+"\n"), nil, nil)
	_, err = r.NamedSocket("socket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists, cannot start")

	long := "/" + strings.Repeat("s", MaxSocketPathLen)
	r = NewOptionReader(sectionFrom(t, "socket = "+long+"\n"), nil, nil)
	_, err = r.NamedSocket("socket")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestOptionReader_Path(t *testing.T) {
	r := NewOptionReader(sectionFrom(t, "folder = /var/log\nhuge = /"+strings.Repeat("p", MaxPathLen)+"\n"), nil, nil)

	got, err := r.Path("folder")
	require.NoError(t, err)
	assert.Equal(t, "/var/log", got)

	_, err = r.Path("huge")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestOptionReader_Scalars(t *testing.T) {
	r := NewOptionReader(sectionFrom(t, "runs = 3\nenabled = true\ninterval = 2\ntimeout = 150ms\nbad = x\n"), nil, nil)

	runs, err := r.Int("runs")
	require.NoError(t, err)
	assert.Equal(t, 3, runs)

	enabled, err := r.Bool("enabled")
	require.NoError(t, err)
	assert.True(t, enabled)

	interval, err := r.Duration("interval")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, interval)

	timeout, err := r.Duration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, timeout)

	_, err = r.Int("bad")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = r.Bool("bad")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = r.Duration("bad")
	assert.ErrorIs(t, err, ErrInvalidValue)
}
