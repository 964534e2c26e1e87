package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_FirstPossession(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if bms := bd.Check(WindowStats{WindowEndTick: 600, Hosts: 10}); hasBookmark(bms, BookmarkFirstPossession) {
		t.Error("no hijacks yet, no bookmark expected")
	}
	if bms := bd.Check(WindowStats{WindowEndTick: 1200, Hosts: 10, Hijacks: 1}); !hasBookmark(bms, BookmarkFirstPossession) {
		t.Error("expected first_possession bookmark")
	}
	if bms := bd.Check(WindowStats{WindowEndTick: 1800, Hosts: 10, Hijacks: 3}); hasBookmark(bms, BookmarkFirstPossession) {
		t.Error("first_possession should trigger once")
	}
}

func TestBookmarkDetector_AttachSurge(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 600), Hosts: 20, Attaches: 1})
	}

	bms := bd.Check(WindowStats{WindowEndTick: 3000, Hosts: 20, Attaches: 6})
	if !hasBookmark(bms, BookmarkAttachSurge) {
		t.Error("expected attach_surge bookmark")
	}
}

func TestBookmarkDetector_HostCollapse(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 600), Hosts: 20})
	}

	bms := bd.Check(WindowStats{WindowEndTick: 3000, Hosts: 20, HostsDead: 10})
	if !hasBookmark(bms, BookmarkHostCollapse) {
		t.Error("expected host_collapse bookmark")
	}
}

func TestBookmarkDetector_MassPossessionRearms(t *testing.T) {
	bd := NewBookmarkDetector(10)

	mass := WindowStats{WindowEndTick: 600, Hosts: 6, Possessing: 3}
	if !hasBookmark(bd.Check(mass), BookmarkMassPossession) {
		t.Fatal("expected mass_possession bookmark")
	}
	mass.WindowEndTick = 1200
	if hasBookmark(bd.Check(mass), BookmarkMassPossession) {
		t.Error("should not repeat while the condition holds")
	}
	bd.Check(WindowStats{WindowEndTick: 1800, Hosts: 6, Possessing: 1})
	mass.WindowEndTick = 2400
	if !hasBookmark(bd.Check(mass), BookmarkMassPossession) {
		t.Error("should trigger again after the condition cleared")
	}
}

func TestBookmarkDetector_Dormant(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var fired int
	for i := 0; i < 8; i++ {
		if hasBookmark(bd.Check(WindowStats{WindowEndTick: int32(i * 600), Hosts: 5, Free: 2}), BookmarkDormant) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("dormant fired %d times, want 1", fired)
	}
}
