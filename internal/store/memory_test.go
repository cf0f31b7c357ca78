package store

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestNewSeedsZeroBased(t *testing.T) {
	s := New()

	rec, ok := s.Get(0)
	if !ok {
		t.Fatal("expected seed record at id 0")
	}
	if rec.Name != "Traffic Routing" || rec.Desc != "Mongo... sorry." {
		t.Errorf("unexpected record 0: %+v", rec)
	}

	rec, ok = s.Get(1)
	if !ok {
		t.Fatal("expected seed record at id 1")
	}
	if rec.Name != "Main" || rec.Desc != "Here be dragons." {
		t.Errorf("unexpected record 1: %+v", rec)
	}

	if _, ok := s.Get(2); ok {
		t.Error("expected id 2 to be absent in a fresh store")
	}
}

func TestNewCustomSeed(t *testing.T) {
	s := New(Record{Name: "only", Desc: "one"})
	if s.Records.Count() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Records.Count())
	}
	if rec, _ := s.Get(0); rec.Name != "only" {
		t.Errorf("unexpected seed record: %+v", rec)
	}
}

func TestAddAssignsNextFreeID(t *testing.T) {
	s := New()

	e := s.Add(NewRecordInput{Name: "X", Desc: "Y"})
	if e.ID != 2 {
		t.Errorf("expected id 2, got %d", e.ID)
	}
	if e.Name != "X" || e.Desc != "Y" {
		t.Errorf("unexpected entry: %+v", e)
	}

	got, ok := s.Get(e.ID)
	if !ok {
		t.Fatal("expected created record to be readable")
	}
	if got != e.Record {
		t.Errorf("round trip mismatch: stored %+v, returned %+v", got, e.Record)
	}

	for want := 3; want < 6; want++ {
		if e := s.Add(NewRecordInput{Name: "n"}); e.ID != want {
			t.Errorf("expected id %d, got %d", want, e.ID)
		}
	}
}

func TestAddAcceptsEmptyStrings(t *testing.T) {
	s := New()
	e := s.Add(NewRecordInput{})
	got, ok := s.Get(e.ID)
	if !ok {
		t.Fatal("expected empty record to be stored")
	}
	if got.Name != "" || got.Desc != "" {
		t.Errorf("expected empty fields, got %+v", got)
	}
}

func TestConcurrentAdd(t *testing.T) {
	s := New()
	const n = 50

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := s.Add(NewRecordInput{Name: "c", Desc: "d"})
			mu.Lock()
			defer mu.Unlock()
			if seen[e.ID] {
				t.Errorf("id %d assigned twice", e.ID)
			}
			seen[e.ID] = true
		}()
	}
	wg.Wait()

	if s.Records.Count() != n+2 {
		t.Errorf("expected %d records, got %d", n+2, s.Records.Count())
	}
}

func TestSnapshotAndLoadState(t *testing.T) {
	s := New()
	s.Add(NewRecordInput{Name: "extra", Desc: "record"})

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	other := New()
	if err := other.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if other.Records.Count() != 3 {
		t.Fatalf("expected 3 records, got %d", other.Records.Count())
	}
	if rec, _ := other.Get(2); rec.Name != "extra" {
		t.Errorf("unexpected record 2: %+v", rec)
	}
}

func TestLoadStateRejectsBadInput(t *testing.T) {
	s := New()
	if err := s.LoadState([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if err := s.LoadState([]byte(`{"records":{"-1":{"name":"neg","desc":""}}}`)); err == nil {
		t.Error("expected error for negative id")
	}
	if s.Records.Count() != 2 {
		t.Errorf("failed load must not change state, got %d records", s.Records.Count())
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	s := New()

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	want := `{"records":{"0":{"name":"Traffic Routing","desc":"Mongo... sorry."},"1":{"name":"Main","desc":"Here be dragons."}}}`
	if string(data) != want {
		t.Errorf("unexpected snapshot JSON:\n got %s\nwant %s", data, want)
	}
}

func TestLoadStateNullRecordsClearsState(t *testing.T) {
	s := New()
	if err := s.LoadState([]byte(`{"records":null}`)); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if s.Records.Count() != 0 {
		t.Errorf("expected empty store, got %d records", s.Records.Count())
	}
	if e := s.Add(NewRecordInput{Name: "first"}); e.ID != 0 {
		t.Errorf("expected id 0 in an empty store, got %d", e.ID)
	}
}

func TestResetRestoresSeed(t *testing.T) {
	s := New()
	s.Add(NewRecordInput{Name: "gone"})
	s.Reset()

	if s.Records.Count() != 2 {
		t.Fatalf("expected 2 records after reset, got %d", s.Records.Count())
	}
	if _, ok := s.Get(2); ok {
		t.Error("expected created record to be cleared")
	}
	if rec, _ := s.Get(0); rec.Name != "Traffic Routing" {
		t.Errorf("expected seed restored, got %+v", rec)
	}
}
