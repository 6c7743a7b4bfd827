//go:build linux

package notify

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObject records Notify calls; only Call is implemented.
type fakeObject struct {
	dbus.BusObject
	method string
	args   []interface{}
	err    error
}

func (f *fakeObject) Call(method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.method = method
	f.args = args
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	return &dbus.Call{Body: []interface{}{uint32(7)}}
}

func TestDBusNotify(t *testing.T) {
	obj := &fakeObject{}
	n := &dbusNotifier{obj: obj}

	id, err := n.Notify(Notification{
		Title:      "Player permission needed",
		Body:       "Spotify",
		Timeout:    5000,
		ReplacesID: 3,
		Urgency:    UrgencyCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)

	assert.Equal(t, dbusNotifyInterface+".Notify", obj.method)
	require.Len(t, obj.args, 8)
	assert.Equal(t, appName, obj.args[0])
	assert.Equal(t, uint32(3), obj.args[1])
	assert.Equal(t, "Player permission needed", obj.args[3])
	assert.Equal(t, "Spotify", obj.args[4])
	assert.Equal(t, int32(5000), obj.args[7])

	hints, ok := obj.args[6].(map[string]dbus.Variant)
	require.True(t, ok)
	assert.Equal(t, byte(UrgencyCritical), hints["urgency"].Value())
}

func TestDBusNotifyError(t *testing.T) {
	n := &dbusNotifier{obj: &fakeObject{err: errors.New("org.freedesktop.DBus.Error.ServiceUnknown")}}

	id, err := n.Notify(Notification{Title: "x"})
	assert.Error(t, err)
	assert.Zero(t, id)
}

func TestDBusClose(t *testing.T) {
	obj := &fakeObject{}
	n := &dbusNotifier{obj: obj}

	require.NoError(t, n.Close(9))
	assert.Equal(t, dbusNotifyInterface+".CloseNotification", obj.method)
	assert.Equal(t, []interface{}{uint32(9)}, obj.args)
}

func TestStubNotifier(t *testing.T) {
	var n Notifier = &stubNotifier{}
	id, err := n.Notify(Notification{Title: "x"})
	assert.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, n.Close(id))
}
