package status

import "testing"

func TestRecentSentencesSnapshotPreservesOrderBeforeWrap(t *testing.T) {
	q := NewRecentSentences(3)
	q.Add(Entry{Line: "a"})
	q.Add(Entry{Line: "b"})

	got := q.Snapshot()
	if len(got) != 2 || got[0].Line != "a" || got[1].Line != "b" {
		t.Fatalf("Snapshot() = %v, want [a b]", got)
	}
}

func TestRecentSentencesDropsOldestOnWrap(t *testing.T) {
	q := NewRecentSentences(3)
	q.Add(Entry{Line: "a"})
	q.Add(Entry{Line: "b"})
	q.Add(Entry{Line: "c"})
	q.Add(Entry{Line: "d"}) // evicts "a"

	got := q.Snapshot()
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i, e := range got {
		if e.Line != want[i] {
			t.Fatalf("Snapshot()[%d] = %q, want %q", i, e.Line, want[i])
		}
	}
}

func TestRecentSentencesMultipleWraps(t *testing.T) {
	q := NewRecentSentences(2)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		q.Add(Entry{Line: line})
	}
	got := q.Snapshot()
	want := []string{"d", "e"}
	for i, e := range got {
		if e.Line != want[i] {
			t.Fatalf("Snapshot()[%d] = %q, want %q", i, e.Line, want[i])
		}
	}
}
