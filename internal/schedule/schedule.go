package schedule

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scope владеет отложенной и периодической работой представления.
// Close отменяет все, что еще не запустилось, и ждет уже запущенные задачи.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]bool
}

func New(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel, running: make(map[string]bool)}
}

// Context завершается при Close.
func (s *Scope) Context() context.Context { return s.ctx }

// After выполняет fn через delay, если Scope к тому времени не закрыт.
func (s *Scope) After(delay time.Duration, fn func(ctx context.Context)) {
	if !s.add() {
		return
	}
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn(s.ctx)
		case <-s.ctx.Done():
		}
	}()
}

// Every выполняет fn с интервалом до Close. Если предыдущий запуск задачи
// name еще идет, очередной пропускается.
func (s *Scope) Every(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 || !s.add() {
		return
	}
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !s.add() {
					return
				}
				go func() {
					defer s.wg.Done()
					s.runOnce(name, fn)
				}()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Scope) runOnce(name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		log.Printf("Задача %s еще выполняется, пропуск", name)
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()
	fn(s.ctx)
}

// add регистрирует задачу. После Close новые задачи не принимаются:
// wg.Add не должен идти параллельно с wg.Wait при нулевом счетчике.
func (s *Scope) add() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// Close отменяет запланированную работу. Повторный вызов безопасен.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
