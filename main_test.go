package main

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"golang.org/x/crypto/ssh/terminal"
)

// scriptTerminal replaces the terminal hooks with fakes and records every
// Restore call. The hooks are put back when the test ends.
func scriptTerminal(t *testing.T, isTerminal bool, stateErr error) (restored *int, state *terminal.State) {
	t.Helper()
	savedIsTerminal := termIsTerminal
	savedGetState := termGetState
	savedRestore := termRestore
	savedExit := termExit
	t.Cleanup(func() {
		termIsTerminal = savedIsTerminal
		termGetState = savedGetState
		termRestore = savedRestore
		termExit = savedExit
	})
	restored = new(int)
	state = &terminal.State{}
	termIsTerminal = func(fd int) bool { return isTerminal }
	termGetState = func(fd int) (*terminal.State, error) {
		if stateErr != nil {
			return nil, stateErr
		}
		return state, nil
	}
	termRestore = func(fd int, st *terminal.State) error {
		if st != state {
			t.Errorf("Restore got a different state than GetState returned")
		}
		*restored++
		return nil
	}
	termExit = func(code int) {}
	return restored, state
}

func TestGuardTerminalRestoresOnReturn(t *testing.T) {
	restored, _ := scriptTerminal(t, true, nil)
	restoreEcho := guardTerminal(0)
	if *restored != 0 {
		t.Errorf("Restore called %d times before the guard returned", *restored)
	}
	restoreEcho()
	if *restored != 1 {
		t.Errorf("Restore called %d times, want 1", *restored)
	}
}

func TestGuardTerminalNotATerminal(t *testing.T) {
	restored, _ := scriptTerminal(t, false, nil)
	restoreEcho := guardTerminal(0)
	restoreEcho()
	if *restored != 0 {
		t.Errorf("Restore called %d times without a terminal", *restored)
	}
}

func TestGuardTerminalStateError(t *testing.T) {
	restored, _ := scriptTerminal(t, true, errors.New("simulated ioctl failure"))
	restoreEcho := guardTerminal(0)
	restoreEcho()
	if *restored != 0 {
		t.Errorf("Restore called %d times without a saved state", *restored)
	}
}

func TestWatchSignalsRestoresAndExits(t *testing.T) {
	restored, state := scriptTerminal(t, true, nil)
	exited := make(chan int, 1)
	termExit = func(code int) { exited <- code }

	ch := make(chan os.Signal, 1)
	go watchSignals(ch, 0, state)
	ch <- syscall.SIGTERM

	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("exit code %d, want 1", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("signal watcher did not exit")
	}
	if *restored != 1 {
		t.Errorf("Restore called %d times on the signal path, want 1", *restored)
	}
}
