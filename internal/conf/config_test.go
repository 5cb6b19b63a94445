package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveSettings_RoundTrip(t *testing.T) {
	settings := &Settings{
		Main: MainSettings{Name: "TestNode"},
		Correlator: CorrelatorSettings{
			Window: WindowSettings{
				Policy:   WindowPolicyTumbling,
				Duration: 30 * time.Second,
				Grace:    5 * time.Second,
			},
		},
	}

	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")
	require.NoError(t, SaveSettings(settings, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "TestNode", loaded.Main.Name)
	assert.Equal(t, WindowPolicyTumbling, loaded.Correlator.Window.Policy)
	assert.Equal(t, 30*time.Second, loaded.Correlator.Window.Duration)
}
