package workflow

import (
	"context"
	"errors"
)

// Start recovers interrupted entries and begins following connectivity,
// background sync and drain requests. The first successful probe triggers the
// startup drain.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.order) == 0 {
		m.mu.Unlock()
		return errors.New("workflow queues not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	for _, kind := range m.order {
		m.queues[kind].RecoverInterrupted(runCtx)
	}

	workers := 2
	if m.sync != nil {
		workers++
	}
	m.wg.Add(workers)
	go func() {
		defer m.wg.Done()
		m.conn.Run(runCtx)
	}()
	go m.runDrainLoop(runCtx)
	if m.sync != nil {
		go func() {
			defer m.wg.Done()
			m.sync.Run(runCtx, m.conn.Online)
		}()
	}
	return nil
}

// Stop cancels background work and waits for in-flight drains to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) runDrainLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.drainReq:
		}
		if !m.conn.Online() {
			m.logger.Debug("drain request ignored while offline")
			continue
		}
		m.DrainAll(ctx)
	}
}
