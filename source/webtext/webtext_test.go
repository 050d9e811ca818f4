package webtext

import (
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://clinicaltrials.gov/study/NCT01234567", false},
		{"http rejected", "http://example.com", true},
		{"localhost", "https://localhost/page", true},
		{"loopback ip", "https://127.0.0.1/page", true},
		{"private ip", "https://10.0.0.8/page", true},
		{"link local", "https://169.254.1.1/x", true},
		{"local domain", "https://db.internal/x", true},
		{"mdns domain", "https://printer.local/x", true},
		{"garbage", "://nope", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.1.1", "169.254.0.5", "100.64.0.1", "fe80::1", "fc00::1", "::1", "::ffff:192.168.1.1"}
	for _, s := range private {
		assert.True(t, IsPrivateIP(net.ParseIP(s)), "%s should be private", s)
	}

	public := []string{"8.8.8.8", "1.1.1.1", "2606:4700::1111"}
	for _, s := range public {
		assert.False(t, IsPrivateIP(net.ParseIP(s)), "%s should be public", s)
	}
}

const samplePage = `<!DOCTYPE html>
<html>
<head><title>NCT01234567 - Glioblastoma Trial</title></head>
<body>
<nav><a href="/">home</a><a href="/studies">studies</a></nav>
<article>
<h1>A Study of Temozolomide in Glioblastoma</h1>
<p>This phase II trial studies how well temozolomide works in treating patients
with newly diagnosed glioblastoma. Eligible patients must have a histologically
confirmed diagnosis and adequate organ function.</p>
<h2>Inclusion Criteria</h2>
<ul>
<li>Histologically confirmed glioblastoma</li>
<li>Age 18 years or older</li>
</ul>
<h2>Exclusion Criteria</h2>
<ul>
<li>Prior cranial radiotherapy</li>
</ul>
</article>
<footer>Contact us</footer>
</body>
</html>`

func TestExtract(t *testing.T) {
	u, err := url.Parse("https://clinicaltrials.gov/study/NCT01234567")
	require.NoError(t, err)

	doc, err := Extract([]byte(samplePage), u)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.Title)
	assert.Contains(t, doc.Text, "temozolomide")
	assert.Contains(t, doc.Text, "glioblastoma")
	assert.Contains(t, doc.Text, "Inclusion Criteria")
}

func TestHTMLTitle(t *testing.T) {
	assert.Equal(t, "NCT01234567 - Glioblastoma Trial", htmlTitle([]byte(samplePage)))
	assert.Equal(t, "", htmlTitle([]byte("<p>no title</p>")))
}
