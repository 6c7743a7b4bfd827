package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"lyricsync/internal/lyrics"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisPrefix      = "org.mpris.MediaPlayer2."
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
)

// MPRIS 直接通过 D-Bus 读取 MPRIS 播放器属性
type MPRIS struct {
	conn    *dbus.Conn
	service string
}

// NewMPRIS service 为空时自动选择正在播放的播放器
func NewMPRIS(conn *dbus.Conn, service string) (*MPRIS, error) {
	if conn == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service != "" && !strings.HasPrefix(service, mprisPrefix) {
		service = mprisPrefix + service
	}
	return &MPRIS{conn: conn, service: service}, nil
}

// Snapshot 查询当前播放状态
func (m *MPRIS) Snapshot(ctx context.Context) (*lyrics.Snapshot, error) {
	services := []string{m.service}
	if m.service == "" {
		var err error
		services, err = m.listPlayers(ctx)
		if err != nil {
			return nil, err
		}
	}

	var paused *lyrics.Snapshot
	for _, service := range services {
		snap, err := m.query(ctx, service)
		if err != nil {
			if m.service != "" {
				return nil, err
			}
			logger.Debug().Err(err).Str("service", service).Msg("Skipping player")
			continue
		}
		if snap == nil {
			continue
		}
		if snap.Playing {
			return snap, nil
		}
		if paused == nil {
			paused = snap
		}
	}
	return paused, nil
}

func (m *MPRIS) listPlayers(ctx context.Context) ([]string, error) {
	var names []string
	err := m.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, classifyDBusError(ctx, err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	return players, nil
}

func (m *MPRIS) query(ctx context.Context, service string) (*lyrics.Snapshot, error) {
	obj := m.conn.Object(service, mprisPath)

	status, err := getProperty(ctx, obj, "PlaybackStatus")
	if err != nil {
		return nil, err
	}
	statusText, _ := status.Value().(string)
	if statusText == "" || statusText == "Stopped" {
		return nil, nil
	}

	metadata, err := getProperty(ctx, obj, "Metadata")
	if err != nil {
		return nil, err
	}
	md, ok := metadata.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", metadata.Value())
	}

	var positionUs int64
	// 有些播放器不支持 Position，按 0 处理
	if position, err := getProperty(ctx, obj, "Position"); err == nil {
		positionUs, _ = position.Value().(int64)
	} else if IsPermissionError(err) {
		return nil, err
	}

	return snapshotFromMetadata(md, statusText, positionUs, strings.TrimPrefix(service, mprisPrefix)), nil
}

func getProperty(ctx context.Context, obj dbus.BusObject, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, name).Store(&v)
	if err != nil {
		return dbus.Variant{}, classifyDBusError(ctx, err)
	}
	return v, nil
}

func classifyDBusError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("dbus call timed out: %w", ctx.Err())
	}
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.AccessDenied", "org.freedesktop.DBus.Error.AuthFailed":
			return fmt.Errorf("%w: %v", ErrPermission, err)
		case "org.freedesktop.DBus.Error.NoReply", "org.freedesktop.DBus.Error.Timeout":
			return fmt.Errorf("dbus call timed out: %w", err)
		case "org.freedesktop.DBus.Error.ServiceUnknown", "org.freedesktop.DBus.Error.NameHasNoOwner":
			return fmt.Errorf("%w: %v", ErrNoPlayer, err)
		}
	}
	return fmt.Errorf("dbus: %w", err)
}

func snapshotFromMetadata(md map[string]dbus.Variant, status string, positionUs int64, player string) *lyrics.Snapshot {
	return newSnapshot(
		extractArtist(md),
		extractString(md, "xesam:title"),
		positionUs/1000,
		extractLengthUs(md)/1000,
		status == "Playing",
		player,
	)
}

func extractString(md map[string]dbus.Variant, key string) string {
	v, ok := md[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// xesam:artist 按规范是字符串数组，但也有播放器直接给字符串
func extractArtist(md map[string]dbus.Variant) string {
	v, ok := md["xesam:artist"]
	if !ok {
		return ""
	}
	switch typed := v.Value().(type) {
	case []string:
		return strings.Join(typed, ", ")
	case string:
		return typed
	default:
		return ""
	}
}

func extractLengthUs(md map[string]dbus.Variant) int64 {
	v, ok := md["mpris:length"]
	if !ok {
		return 0
	}
	switch typed := v.Value().(type) {
	case int64:
		return typed
	case uint64:
		return int64(typed)
	case int32:
		return int64(typed)
	default:
		return 0
	}
}
