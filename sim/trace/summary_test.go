package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalEvents != 0 || summary.TotalTransfers != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.MeanTransferTime != 0 || summary.MaxTransferTime != 0 {
		t.Error("expected 0 transfer times")
	}
	if len(summary.EventsByKind) != 0 {
		t.Error("expected empty kind distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary == nil || summary.EventsByKind == nil || summary.TransfersBySender == nil {
		t.Fatal("expected initialized summary for nil trace")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed events and transfers
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})
	st.RecordEvent(EventRecord{Seq: 1, Time: 0, Kind: "init"})
	st.RecordEvent(EventRecord{Seq: 2, Time: 0, Kind: "start_train"})
	st.RecordEvent(EventRecord{Seq: 3, Time: 10, Kind: "disseminate"})
	st.RecordEvent(EventRecord{Seq: 4, Time: 20, Kind: "disseminate"})
	st.RecordTransfer(TransferRecord{Sender: 0, Receiver: 1, Bytes: 50, Start: 10, End: 11})
	st.RecordTransfer(TransferRecord{Sender: 0, Receiver: 2, Bytes: 50, Start: 10, End: 13})
	st.RecordTransfer(TransferRecord{Sender: 2, Receiver: 1, Bytes: 50, Start: 20, End: 22})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and statistics match
	if summary.TotalEvents != 4 {
		t.Errorf("expected 4 events, got %d", summary.TotalEvents)
	}
	if summary.EventsByKind["disseminate"] != 2 {
		t.Errorf("expected 2 disseminate events, got %d", summary.EventsByKind["disseminate"])
	}
	if summary.LastEventTime != 20 {
		t.Errorf("expected last event time 20, got %f", summary.LastEventTime)
	}
	if summary.TotalTransfers != 3 || summary.TransferredBytes != 150 {
		t.Errorf("unexpected transfer totals %+v", summary)
	}
	if summary.MeanTransferTime != 2 {
		t.Errorf("expected mean transfer time 2, got %f", summary.MeanTransferTime)
	}
	if summary.MaxTransferTime != 3 {
		t.Errorf("expected max transfer time 3, got %f", summary.MaxTransferTime)
	}
	if summary.TransfersBySender[0] != 2 || summary.TransfersBySender[2] != 1 {
		t.Errorf("unexpected per-sender counts %v", summary.TransfersBySender)
	}
}
