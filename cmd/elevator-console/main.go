// Command elevator-console drives one elevator controller from the keyboard.
//
//	1-9  request floor 1-9
//	0    request floor 10
//	w    toggle the overweight sensor
//	s    print the current state
//	q    quit (also Esc / Ctrl-C)
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eiannone/keyboard"

	"go-elevator-controller/internal/config"
	"go-elevator-controller/pkg/elevator"
	"go-elevator-controller/pkg/journal"
)

type action int

const (
	actNone action = iota
	actRequest
	actOverweight
	actState
	actQuit
)

// decode maps one key press to a console action.
func decode(r rune, key keyboard.Key) (action, int) {
	switch key {
	case keyboard.KeyCtrlC, keyboard.KeyEsc:
		return actQuit, 0
	}
	switch {
	case r >= '1' && r <= '9':
		return actRequest, int(r - '0')
	case r == '0':
		return actRequest, 10
	case r == 'w' || r == 'W':
		return actOverweight, 0
	case r == 's' || r == 'S':
		return actState, 0
	case r == 'q' || r == 'Q':
		return actQuit, 0
	}
	return actNone, 0
}

// display prints floor notifications the way the car panel shows them.
// It is the reader of the controller's event channel and returns when events
// closes or ctx is done.
func display(ctx context.Context, events <-chan elevator.Event, w io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case elevator.EventFloorPassed:
				fmt.Fprintf(w, "Passed floor: %v\r\n", ev.Payload)
			case elevator.EventFloorStopped:
				fmt.Fprintf(w, "Stopped at floor: %v\r\n", ev.Payload)
			case elevator.EventOverweight:
				fmt.Fprintf(w, "Max weight reached at floor %v\r\n", ev.Payload)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("elevator-console", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	jr, err := journal.Open(cfg.LogFile)
	if err != nil {
		return err
	}
	defer jr.Close()

	ctrl, err := elevator.New(cfg.Elevator, elevator.WithJournal(jr))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go display(ctx, ctrl.Events(), os.Stdout)
	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Elevator run error", "error", err)
		}
	}()

	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("open keyboard: %w", err)
	}
	defer keyboard.Close()

	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return fmt.Errorf("read keyboard: %w", err)
	}

	fmt.Print("1-9/0 request floor, w overweight, s state, q quit\r\n")
	for ev := range keys {
		if ev.Err != nil {
			return fmt.Errorf("keyboard: %w", ev.Err)
		}

		act, floor := decode(ev.Rune, ev.Key)
		switch act {
		case actRequest:
			ctrl.RequestFloor(floor)
		case actOverweight:
			overweight := !ctrl.Overweight()
			ctrl.ReportOverweight(overweight)
			fmt.Printf("Overweight sensor: %v\r\n", overweight)
		case actState:
			s := ctrl.Snapshot()
			fmt.Printf("floor=%d dir=%s moving=%v overweight=%v pending=%v\r\n",
				s.Floor, s.Direction, s.IsMoving, s.Overweight, s.Pending)
		case actQuit:
			return nil
		}
	}
	return nil
}
