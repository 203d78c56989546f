package properties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertySetBoolRoundTrips(t *testing.T) {
	in, err := newPropertySet("io.edgehog.devicemanager.apps.AvailableImages", "/abc/pulled", true)
	require.NoError(t, err)

	var out PropertySet
	require.NoError(t, out.Unmarshal(in.Marshal()))

	assert.Equal(t, in.Interface, out.Interface)
	assert.Equal(t, in.Path, out.Path)
	assert.True(t, out.HasBool)
	assert.True(t, out.BoolVal)
	assert.False(t, out.HasStr)
}

func TestPropertySetStringRoundTrips(t *testing.T) {
	in, err := newPropertySet("io.edgehog.devicemanager.apps.AvailableContainers", "/abc/status", "Created")
	require.NoError(t, err)

	var out PropertySet
	require.NoError(t, out.Unmarshal(in.Marshal()))

	assert.True(t, out.HasStr)
	assert.Equal(t, "Created", out.StrVal)
	assert.False(t, out.HasBool)
}

func TestPropertySetRejectsUnsupportedValue(t *testing.T) {
	_, err := newPropertySet("x", "/y", 42)
	assert.Error(t, err)
}

func TestPropertyUnsetRoundTrips(t *testing.T) {
	in := &PropertyUnset{Interface: "io.edgehog.devicemanager.apps.AvailableVolumes", Path: "/abc/created"}
	var out PropertyUnset
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, *in, out)
}

func TestOtaEventWireRoundTrips(t *testing.T) {
	in := &OtaEventWire{RequestUUID: "uuid-1", Status: "Downloading", StatusProgress: 42}
	var out OtaEventWire
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, *in, out)
}
