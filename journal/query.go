package journal

import "fmt"

// Runs returns every recorded run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	if err := s.db.Order("started_at, id").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// SlugHistory returns one organism's events in the active run, in order.
func (s *Store) SlugHistory(slugID uint32) ([]Entry, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	var entries []Entry
	err := s.db.Where("run_id = ? AND slug_id = ?", s.runID, slugID).
		Order("tick, id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("slug %d history: %w", slugID, err)
	}
	return entries, nil
}

// TransitionCounts returns how many events of each type the active run recorded.
func (s *Store) TransitionCounts() (map[string]int64, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	var rows []struct {
		Type string
		N    int64
	}
	err := s.db.Model(&Entry{}).
		Select("type, count(*) AS n").
		Where("run_id = ?", s.runID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("transition counts: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Type] = r.N
	}
	return out, nil
}

// HostsPossessedBy returns the distinct hosts an organism hijacked in the active run.
func (s *Store) HostsPossessedBy(slugID uint32) ([]uint32, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	var hosts []uint32
	err := s.db.Model(&Entry{}).
		Where("run_id = ? AND slug_id = ? AND type = ?", s.runID, slugID, "hijacked").
		Distinct("host_id").
		Order("host_id").
		Pluck("host_id", &hosts).Error
	if err != nil {
		return nil, fmt.Errorf("hosts possessed by %d: %w", slugID, err)
	}
	return hosts, nil
}
