package pricing

// Observer receives per-line evaluation outcomes. Implementations must not retain or mutate lines.
type Observer interface {
	LineSkipped(line Line, reason error)
	LineDiscounted(line Line, op Operation, percent int)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) LineSkipped(Line, error) {}

func (NopObserver) LineDiscounted(Line, Operation, int) {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Skipped    func(line Line, reason error)
	Discounted func(line Line, op Operation, percent int)
}

// LineSkipped implements Observer.
func (f ObserverFuncs) LineSkipped(line Line, reason error) {
	if f.Skipped != nil {
		f.Skipped(line, reason)
	}
}

// LineDiscounted implements Observer.
func (f ObserverFuncs) LineDiscounted(line Line, op Operation, percent int) {
	if f.Discounted != nil {
		f.Discounted(line, op, percent)
	}
}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) LineSkipped(line Line, reason error) {
	for _, o := range m {
		o.LineSkipped(line, reason)
	}
}

func (m multiObserver) LineDiscounted(line Line, op Operation, percent int) {
	for _, o := range m {
		o.LineDiscounted(line, op, percent)
	}
}
