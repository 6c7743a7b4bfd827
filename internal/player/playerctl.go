package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"lyricsync/internal/lyrics"
)

// 一次调用取回全部字段，position 和 mpris:length 单位都是微秒
const playerctlFormat = "{{status}}\t{{position}}\t{{mpris:length}}\t{{playerName}}\t{{artist}}\t{{title}}"

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Playerctl 通过 playerctl 命令获取播放状态
type Playerctl struct {
	binary string
	player string
	run    runFunc
}

// NewPlayerctl player 为空时由 playerctl 自己选择播放器
func NewPlayerctl(binary, player string) *Playerctl {
	if binary == "" {
		binary = "playerctl"
	}
	return &Playerctl{binary: binary, player: player, run: execRun}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Snapshot 查询当前播放状态
func (p *Playerctl) Snapshot(ctx context.Context) (*lyrics.Snapshot, error) {
	args := []string{}
	if p.player != "" {
		args = append(args, "--player", p.player)
	}
	args = append(args, "metadata", "--format", playerctlFormat)

	stdout, stderr, err := p.run(ctx, p.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("playerctl timed out: %w", ctx.Err())
		}
		msg := strings.TrimSpace(string(stderr))
		if strings.Contains(msg, "No players found") || strings.Contains(msg, "No player could handle") {
			return nil, nil
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %v", ErrNoPlayer, err)
		}
		if msg != "" {
			return nil, fmt.Errorf("playerctl: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("playerctl: %w", err)
	}

	return parsePlayerctl(string(stdout))
}

func parsePlayerctl(out string) (*lyrics.Snapshot, error) {
	out = strings.TrimRight(out, "\r\n")
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}

	fields := strings.SplitN(out, "\t", 6)
	if len(fields) != 6 {
		return nil, fmt.Errorf("unexpected playerctl output %q", out)
	}

	status := strings.TrimSpace(fields[0])
	if status == "Stopped" {
		return nil, nil
	}

	snap := newSnapshot(
		fields[4],
		fields[5],
		parseMicros(fields[1])/1000,
		parseMicros(fields[2])/1000,
		status == "Playing",
		strings.TrimSpace(fields[3]),
	)
	if snap == nil {
		logger.Debug().Str("status", status).Msg("Player has no artist or title")
	}
	return snap, nil
}

func parseMicros(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// 部分播放器会返回浮点数
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
