package index

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
)

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if n := len(index.GetAllRecords()); n != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v records", n)
	}
	if _, ok := index.LastCycle(); ok {
		t.Error("LastCycle() should report no cycle before the first one")
	}
}

func TestUpdateRecordsOverwrites(t *testing.T) {
	index := NewMemoryIndex()

	index.UpdateRecords([]domain.ServiceRecord{
		{Server: "http://old:11434", Status: domain.StatusSuccess},
	})
	index.UpdateRecords([]domain.ServiceRecord{
		{Server: "http://a:11434", Status: domain.StatusSuccess},
		{Server: "http://b:11434", Status: domain.StatusError},
	})

	if index.Count() != 2 {
		t.Errorf("UpdateRecords() should overwrite, got %v records want 2", index.Count())
	}
	if _, ok := index.GetRecord("http://old:11434"); ok {
		t.Error("GetRecord() returned a record from the previous snapshot")
	}
	if index.GetLastReload().IsZero() {
		t.Error("UpdateRecords() should set the last reload time")
	}
}

func TestGetAllRecordsSortedByTPS(t *testing.T) {
	index := NewMemoryIndex()
	index.UpdateRecords([]domain.ServiceRecord{
		{Server: "http://slow:11434", TPS: 3},
		{Server: "http://fast:11434", TPS: 90},
		{Server: "http://mid:11434", TPS: 20},
	})

	got := index.GetAllRecords()
	want := []string{"http://fast:11434", "http://mid:11434", "http://slow:11434"}
	for i, r := range got {
		if r.Server != want[i] {
			t.Errorf("GetAllRecords()[%d] = %v, want %v", i, r.Server, want[i])
		}
	}
}

func TestUpsertRecord(t *testing.T) {
	index := NewMemoryIndex()
	index.UpdateRecords([]domain.ServiceRecord{{Server: "http://a:11434", TPS: 1}})

	index.UpsertRecord(domain.ServiceRecord{Server: "http://a:11434", TPS: 5})
	index.UpsertRecord(domain.ServiceRecord{Server: "http://b:11434", TPS: 2})

	if index.Count() != 2 {
		t.Errorf("Count() = %v, want 2", index.Count())
	}
	if r, _ := index.GetRecord("http://a:11434"); r.TPS != 5 {
		t.Errorf("UpsertRecord() TPS = %v, want 5", r.TPS)
	}
}

func TestLastCycle(t *testing.T) {
	index := NewMemoryIndex()
	summary := domain.CycleSummary{
		CycleID:   "abc",
		StartedAt: time.Now(),
		Valid:     3,
		Statuses:  map[domain.State]int{domain.StateMeasured: 3},
	}
	index.SetLastCycle(summary)

	got, ok := index.LastCycle()
	if !ok {
		t.Fatal("LastCycle() should report the stored cycle")
	}
	if got.CycleID != "abc" || got.Valid != 3 {
		t.Errorf("LastCycle() = %+v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	index := NewMemoryIndex()
	var wg sync.WaitGroup

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = index.GetAllRecords()
		}()
	}

	// Concurrent upserts
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			index.UpsertRecord(domain.ServiceRecord{Server: fmt.Sprintf("http://h%d:11434", i)})
		}(i)
	}

	wg.Wait()

	if index.Count() != 100 {
		t.Errorf("Concurrent UpsertRecord() count = %v, want 100", index.Count())
	}
}
