// Package scheduler runs the server's background work: the initial
// workspace index and the periodic persistence of the unit graph. High
// priority tasks (a save-triggered flush) jump the queue ahead of the
// periodic ones.
package scheduler

import (
	"log"
	"sync"
	"time"
)

type Task struct {
	Name    string
	Execute func() error
}

type Scheduler struct {
	taskQueue chan Task
	lowLock   sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex // guards stopped and sends on taskQueue
	stopped bool
}

// New creates a Scheduler with the specified queue size.
func New(queueSize int) *Scheduler {
	return &Scheduler{
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// Run starts the scheduler loop.
func (s *Scheduler) Run() {
	go func() {
		for {
			select {
			case task, ok := <-s.taskQueue:
				if !ok {
					return
				}
				if err := task.Execute(); err != nil {
					log.Printf("scheduler: %s failed: %v", task.Name, err)
				}
				s.wg.Done()
			case <-s.stopChan:
				// Drain remaining tasks before exiting.
				for task := range s.taskQueue {
					if err := task.Execute(); err != nil {
						log.Printf("scheduler: %s failed: %v", task.Name, err)
					}
					s.wg.Done()
				}
				return
			}
		}
	}()
}

// Periodic enqueues task every interval, and once at startup. Scheduling is
// skipped when the queue is full; the next tick retries.
func (s *Scheduler) Periodic(interval time.Duration, task Task) {
	go func() {
		s.lowLock.Lock()
		defer s.lowLock.Unlock()
		if err := task.Execute(); err != nil {
			log.Printf("scheduler: initial %s failed: %v", task.Name, err)
		}
	}()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if s.stopped {
					s.mu.Unlock()
					return
				}
				select {
				case s.taskQueue <- task:
					s.wg.Add(1)
				default:
					log.Printf("scheduler: skipped %s, queue full", task.Name)
				}
				s.mu.Unlock()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Enqueue runs a task as soon as the queue reaches it. Tasks arriving after
// Stop are dropped rather than accepted into a closing queue.
func (s *Scheduler) Enqueue(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		log.Printf("scheduler: dropped %s, scheduler stopped", task.Name)
		return
	}
	s.wg.Add(1)
	s.taskQueue <- task
}

// Stop waits for queued tasks to finish and stops the scheduler. Safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	close(s.taskQueue)
	s.mu.Unlock()
	s.wg.Wait()
}
