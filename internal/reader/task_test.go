package reader

import (
	"testing"
	"time"
)

func TestTaskRunsToCompletion(t *testing.T) {
	var task Task
	done := make(chan struct{})
	if err := task.Start(func(shouldStop func() bool) {
		close(done)
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker never ran")
	}
	// Stop after natural completion is a no-op.
	task.Stop()
	if task.Running() {
		t.Fatalf("task still running after completion")
	}
}

func TestTaskDoubleStartIsHardError(t *testing.T) {
	var task Task
	release := make(chan struct{})
	if err := task.Start(func(shouldStop func() bool) {
		<-release
	}); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	if err := task.Start(func(shouldStop func() bool) {}); err == nil {
		t.Fatalf("second Start succeeded while the worker was live")
	}
	close(release)
	task.Stop()
}

func TestTaskStopQuiescesWorker(t *testing.T) {
	var task Task
	stopped := make(chan struct{})
	if err := task.Start(func(shouldStop func() bool) {
		for !shouldStop() {
			time.Sleep(time.Millisecond)
		}
		close(stopped)
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	task.Stop()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("worker did not observe the stop request")
	}
	if task.Running() {
		t.Fatalf("Running reports true after Stop returned")
	}
}

func TestTaskRestartAfterExit(t *testing.T) {
	var task Task
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		if err := task.Start(func(shouldStop func() bool) {
			close(done)
		}); err != nil {
			t.Fatalf("Start %d returned error: %v", i, err)
		}
		<-done
		task.Stop()
	}
}

func TestTaskStopWithoutStart(t *testing.T) {
	var task Task
	task.Stop()
	if task.Running() {
		t.Fatalf("idle task reports running")
	}
}
