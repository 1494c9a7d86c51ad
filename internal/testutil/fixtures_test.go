package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSampleInputs(t *testing.T) {
	in := WriteSampleInputs(t)

	for _, path := range []string{in.HeartRate, in.Steps, in.Sleep, in.JSON} {
		_, err := os.Stat(path)
		require.NoError(t, err, path)
	}

	data, err := os.ReadFile(in.Steps)
	require.NoError(t, err)
	assert.Equal(t, StepsCSV, string(data))

	_, err = os.Stat(Missing(t, "nope.csv"))
	assert.True(t, os.IsNotExist(err))
}
