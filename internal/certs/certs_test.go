package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	c, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return c
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup       func(t *testing.T, m *FileManager)
		name        string
		wantReplace bool
	}{
		{
			name:  "creates a certificate when none exists",
			setup: func(*testing.T, *FileManager) {},
		},
		{
			name: "reuses a valid certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
			},
		},
		{
			name: "replaces a corrupt certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				require.NoError(t, os.MkdirAll(m.certDir, 0o700))
				require.NoError(t, os.WriteFile(m.certFile, []byte("garbage"), 0o600))
				require.NoError(t, os.WriteFile(m.keyFile, []byte("garbage"), 0o600))
			},
			wantReplace: true,
		},
		{
			name: "replaces an expired certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				m.now = func() time.Time { return time.Now().Add(-2 * Validity) }
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
				m.now = time.Now
			},
			wantReplace: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFileManager(filepath.Join(t.TempDir(), "certs"))
			tt.setup(t, m)

			before, _ := os.ReadFile(m.certFile)

			cert, err := m.GetOrCreateCertificate()
			require.NoError(t, err)

			c := leaf(t, cert)
			assert.NoError(t, c.VerifyHostname("localhost"))
			assert.NoError(t, c.VerifyHostname("127.0.0.1"))
			assert.Equal(t, "onething local API", c.Subject.CommonName)
			assert.True(t, c.NotAfter.After(time.Now().Add(Validity-time.Hour)))

			after, err := os.ReadFile(m.certFile)
			require.NoError(t, err)
			if len(before) > 0 {
				assert.Equal(t, tt.wantReplace, string(before) != string(after))
			}

			info, err := os.Stat(m.keyFile)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}
}

func TestFileManager_TLSConfig(t *testing.T) {
	m := NewFileManager(t.TempDir())
	cfg, err := m.TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.FileExists(t, m.CertFile())
}
