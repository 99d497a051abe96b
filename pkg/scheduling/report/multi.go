package report

import (
	"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

type multi []scheduler.Observer

// Multi returns an observer that calls each observer in order. Nil entries
// are ignored. A panicking observer does not prevent the others from
// running; the first panic is re-raised once all have been called.
func Multi(observers ...scheduler.Observer) scheduler.Observer {
	m := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multi) OnCycleComplete(result task.CycleResult) {
	var first interface{}
	for _, o := range m {
		if r := notify(o, result); r != nil && first == nil {
			first = r
		}
	}
	if first != nil {
		panic(first)
	}
}

func notify(o scheduler.Observer, result task.CycleResult) (recovered interface{}) {
	defer func() {
		recovered = recover()
	}()
	o.OnCycleComplete(result)
	return nil
}
