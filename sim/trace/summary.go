package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents       int
	EventsByKind      map[string]int // event kind → count of dispatched events
	TotalTransfers    int
	TransferredBytes  float64
	MeanTransferTime  float64
	MaxTransferTime   float64
	TransfersBySender map[int]int // participant index → transfers sent
	LastEventTime     float64
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		EventsByKind:      make(map[string]int),
		TransfersBySender: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	for _, e := range st.Events {
		summary.EventsByKind[e.Kind]++
		if e.Time > summary.LastEventTime {
			summary.LastEventTime = e.Time
		}
	}

	if len(st.Transfers) > 0 {
		total := 0.0
		for _, tr := range st.Transfers {
			d := tr.Duration()
			total += d
			if d > summary.MaxTransferTime {
				summary.MaxTransferTime = d
			}
			summary.TransferredBytes += tr.Bytes
			summary.TransfersBySender[tr.Sender]++
		}
		summary.MeanTransferTime = total / float64(len(st.Transfers))
	}
	summary.TotalTransfers = len(st.Transfers)

	return summary
}
