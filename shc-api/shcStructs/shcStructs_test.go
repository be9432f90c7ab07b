package shcStructs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFriendlyState(t *testing.T) {
	window := &Device{Type: WindowDoorSensor, State: DeviceState{Value: true}}
	assert.Equal(t, "OPEN", window.GetFriendlyState())
	window.State.Value = false
	assert.Equal(t, "CLOSED", window.GetFriendlyState())

	alarm := &Device{Type: AlarmActuator, State: DeviceState{Value: true}}
	assert.Equal(t, "ALARM", alarm.GetFriendlyState())

	lamp := &Device{Type: SwitchActuator, State: DeviceState{Value: false}}
	assert.Equal(t, "OFF", lamp.GetFriendlyState())

	shutter := &Device{Type: RollerShutterActuator, State: DeviceState{Value: 42.5}}
	assert.Equal(t, "42.5", shutter.GetFriendlyState())
	assert.Equal(t, 42.5, shutter.GetState())

	reported := &Device{Type: WindowDoorSensor, State: DeviceState{Value: true, FriendlyValue: "Offen"}}
	assert.Equal(t, "Offen", reported.GetFriendlyState())
}

func TestApplyEvent(t *testing.T) {
	d := &Device{Id: "sensor-1", Type: WindowDoorSensor, State: DeviceState{Value: false, FriendlyValue: "CLOSED"}}

	err := d.ApplyEvent(DeviceEvent{DeviceId: "sensor-1", State: map[string]any{"value": true}})
	require.NoError(t, err)
	assert.Equal(t, true, d.GetState())
	assert.Equal(t, "OPEN", d.GetFriendlyState())

	err = d.ApplyEvent(DeviceEvent{DeviceId: "sensor-1", State: map[string]any{"value": false, "friendlyValue": "Zu"}})
	require.NoError(t, err)
	assert.Equal(t, "Zu", d.GetFriendlyState())

	err = d.ApplyEvent(DeviceEvent{DeviceId: "sensor-1", State: map[string]any{"friendlyValue": 12}})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "21", FormatValue(21.0))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "abc", FormatValue("abc"))
	assert.Equal(t, "7", FormatValue(7))
}
