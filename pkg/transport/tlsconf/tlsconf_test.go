package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSelfSigned tests that generated certificates cover the requested hosts
func TestSelfSigned(t *testing.T) {
	cert, err := SelfSigned("example.test", "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyHostname("example.test"))
	assert.NoError(t, leaf.VerifyHostname("10.0.0.1"))
	assert.Error(t, leaf.VerifyHostname("other.test"))
}

// TestServer tests the server config with and without key files
func TestServer(t *testing.T) {
	conf, err := Server("", "", "wrym")
	require.NoError(t, err)
	assert.Len(t, conf.Certificates, 1)
	assert.Equal(t, []string{"wrym"}, conf.NextProtos)
	assert.Equal(t, uint16(tls.VersionTLS13), conf.MinVersion)

	_, err = Server("missing.pem", "missing.key")
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	conf := Client(true, "wrym")
	assert.True(t, conf.InsecureSkipVerify)
	assert.Equal(t, []string{"wrym"}, conf.NextProtos)
}
