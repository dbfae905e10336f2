package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBannerIncludesVersion(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	defer func() { Version = old }()

	var buf bytes.Buffer
	PrintBanner(&buf)

	assert.Contains(t, buf.String(), "fusionn-batch v9.9.9")
	assert.Contains(t, buf.String(), Banner())
}
