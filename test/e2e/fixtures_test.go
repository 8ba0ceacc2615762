package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/devflow/internal/extract"
)

func TestEncodeFixture_RoundTripsThroughExtractor(t *testing.T) {
	e := extract.NewExtractor()
	sample := "release notes & rollback <steps> for the gateway"
	for _, ext := range FixtureExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := EncodeFixture(ext, sample)
			require.NoError(t, err)
			require.NotEmpty(t, content)

			got, err := e.ExtractBytes(content, ext)
			require.NoError(t, err)
			assert.Contains(t, got, sample)
		})
	}
}
