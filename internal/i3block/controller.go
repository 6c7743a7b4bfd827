// Package i3block 在状态变化时通知 i3blocks 刷新歌词块
package i3block

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "i3block").Logger()

const (
	// sigRTMin Linux 上 i3blocks 使用的实时信号基准
	sigRTMin = 34

	refreshInterval = 10 * time.Second
)

var errNotFound = errors.New("i3blocks process not found")

// lookupFunc 返回进程名匹配的 PID 列表输出
type lookupFunc func(ctx context.Context, process string) ([]byte, error)

// Controller 记录 i3blocks 的 PID 并发送刷新信号
type Controller struct {
	process string
	signal  syscall.Signal
	lookup  lookupFunc
	kill    func(pid int, sig syscall.Signal) error

	pid      int
	pidMutex sync.RWMutex
}

// NewController signal 为 i3blocks 配置里的 signal 值，实际发送 SIGRTMIN+signal
func NewController(process string, signal int) *Controller {
	if process == "" {
		process = "i3blocks"
	}
	return &Controller{
		process: process,
		signal:  syscall.Signal(sigRTMin + signal),
		lookup:  pgrep,
		kill:    syscall.Kill,
		pid:     -1,
	}
}

// Run 定期刷新 PID，直到 ctx 结束
func (c *Controller) Run(ctx context.Context) {
	if err := c.refreshPID(ctx); err != nil {
		logger.Warn().Err(err).Msg("i3blocks not running yet")
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refreshPID(ctx); err != nil {
				logger.Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		}
	}
}

// Refresh 发送刷新信号，进程不存在时先重新查找一次
func (c *Controller) Refresh(ctx context.Context) error {
	pid := c.GetPID()
	if pid <= 0 {
		if err := c.refreshPID(ctx); err != nil {
			return err
		}
		pid = c.GetPID()
	}

	err := c.kill(pid, c.signal)
	if errors.Is(err, syscall.ESRCH) {
		// i3blocks 重启过
		if err := c.refreshPID(ctx); err != nil {
			return err
		}
		pid = c.GetPID()
		err = c.kill(pid, c.signal)
	}
	if err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", int(c.signal), pid, err)
	}
	return nil
}

// GetPID returns the current stored PID
func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

func (c *Controller) refreshPID(ctx context.Context) error {
	output, err := c.lookup(ctx, c.process)
	pid := -1
	if err == nil {
		pid, err = parsePID(output)
	}

	c.pidMutex.Lock()
	oldPID := c.pid
	c.pid = pid
	c.pidMutex.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		logger.Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return nil
}

// parsePID 多个 PID 时取第一个，自身进程除外
func parsePID(output []byte) (int, error) {
	self := os.Getpid()
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return -1, fmt.Errorf("failed to parse PID %q: %w", line, err)
		}
		if pid > 0 && pid != self {
			return pid, nil
		}
	}
	return -1, errNotFound
}

func pgrep(ctx context.Context, process string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "pgrep", "-x", process).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		// pgrep 没有匹配时退出码为 1
		return nil, errNotFound
	}
	return output, err
}
