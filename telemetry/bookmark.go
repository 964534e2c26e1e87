package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstPossession BookmarkType = "first_possession"
	BookmarkAttachSurge     BookmarkType = "attach_surge"
	BookmarkMassPossession  BookmarkType = "mass_possession"
	BookmarkHostCollapse    BookmarkType = "host_collapse"
	BookmarkDormant         BookmarkType = "dormant"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType
	Tick        int32
	Description string
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	seenPossession  bool
	massTriggered   bool
	recentAlivePeak int // peak living host count in recent history
	quietWindows    int // consecutive windows without attaches while organisms are free
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkFirstPossession(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Attach surge: attaches > 2x rolling average
		if b := bd.checkAttachSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Host collapse: living hosts dropped >30% from recent peak
		if b := bd.checkHostCollapse(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Mass possession: at least half the living hosts are puppeteered
	if b := bd.checkMassPossession(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	// Dormant: free organisms but no attaches for several windows
	if b := bd.checkDormant(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)

	if alive := stats.Hosts - stats.HostsDead; alive > bd.recentAlivePeak {
		bd.recentAlivePeak = alive
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFirstPossession(stats WindowStats) *Bookmark {
	if bd.seenPossession || stats.Hijacks == 0 {
		return nil
	}
	bd.seenPossession = true
	return &Bookmark{
		Type:        BookmarkFirstPossession,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("First host taken over (%d hijacks this window)", stats.Hijacks),
	}
}

func (bd *BookmarkDetector) checkAttachSurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Attaches
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.Attaches) > avg*2.0 && stats.Attaches >= 3 {
		return &Bookmark{
			Type:        BookmarkAttachSurge,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d attaches is %.1fx average (%.2f)", stats.Attaches, float64(stats.Attaches)/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkHostCollapse(stats WindowStats) *Bookmark {
	if bd.recentAlivePeak == 0 {
		return nil
	}

	alive := stats.Hosts - stats.HostsDead
	dropPercent := 1.0 - float64(alive)/float64(bd.recentAlivePeak)
	if dropPercent > 0.30 {
		oldPeak := bd.recentAlivePeak
		bd.recentAlivePeak = alive

		return &Bookmark{
			Type:        BookmarkHostCollapse,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Living hosts fell %.0f%% from peak %d to %d", dropPercent*100, oldPeak, alive),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkMassPossession(stats WindowStats) *Bookmark {
	alive := stats.Hosts - stats.HostsDead
	if alive <= 0 {
		return nil
	}
	mass := stats.Possessing*2 >= alive && stats.Possessing >= 2
	if !mass {
		bd.massTriggered = false
		return nil
	}
	if bd.massTriggered {
		return nil
	}
	bd.massTriggered = true
	return &Bookmark{
		Type:        BookmarkMassPossession,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d of %d living hosts are possessed", stats.Possessing, alive),
	}
}

func (bd *BookmarkDetector) checkDormant(stats WindowStats) *Bookmark {
	if stats.Free == 0 || stats.Attaches > 0 || stats.AttachAttempts > 0 {
		bd.quietWindows = 0
		return nil
	}
	bd.quietWindows++
	if bd.quietWindows == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkDormant,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d free organisms made no attach attempt over 5 windows", stats.Free),
		}
	}
	return nil
}
