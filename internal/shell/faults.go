package shell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/dotcommander/cardshell/internal/worker"
)

// raiseUIFault panics inside posted UI work.
func raiseUIFault() {
	panic(errors.New("card texture missing from atlas"))
}

// raiseTaskFault starts three failing tasks, aggregates them and drops the
// aggregate, so the failures reach the funnel as one unobserved task fault.
func (s *Shell) raiseTaskFault() {
	failures := []error{
		&fs.PathError{Op: "open", Path: "decks/poker/joker.png", Err: fs.ErrNotExist},
		fmt.Errorf("sync catalog: %w", context.DeadlineExceeded),
		&strconv.NumError{Func: "Atoi", Num: "ten", Err: strconv.ErrSyntax},
	}

	handles := make([]worker.Handle, 0, len(failures))
	for _, err := range failures {
		handles = append(handles, worker.Start(s.bg, s.rt, func(context.Context) (struct{}, error) {
			return struct{}{}, err
		}))
	}
	done := worker.WhenAll(s.bg, s.rt, handles...).Done()
	s.con.Printf("Started %d background tasks\n", len(failures))

	s.rt.Go("collector", func() {
		<-done
		for range 5 {
			s.rt.Collect()
			time.Sleep(20 * time.Millisecond)
		}
	})
}

// raiseThreadFault panics on a detached worker goroutine.
func (s *Shell) raiseThreadFault() {
	s.rt.Go("renderer", func() {
		panic(errors.New("texture atlas corrupted"))
	})
}
