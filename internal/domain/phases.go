package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type phaseShape int

const (
	shapeMap phaseShape = iota
	shapeList
)

// Phases stores the per-phase records. Older projects kept them in a
// zero-indexed list; newer ones in an object keyed "1".."3". Both shapes are
// read through Get and written through Set, and JSON output is always the
// keyed object.
type Phases struct {
	shape phaseShape
	list  []PhaseRecord
	byKey map[string]PhaseRecord
}

// NewPhases returns an empty keyed record set.
func NewPhases() Phases {
	return Phases{shape: shapeMap, byKey: map[string]PhaseRecord{}}
}

// PhasesFromList wraps a list-shaped record set.
func PhasesFromList(records []PhaseRecord) Phases {
	return Phases{shape: shapeList, list: append([]PhaseRecord(nil), records...)}
}

// Shape reports "list" or "map".
func (p Phases) Shape() string {
	if p.shape == shapeList {
		return "list"
	}
	return "map"
}

// Get returns the record for phase n, checking the list shape first, then the
// keyed shape, then falling back to an empty record.
func (p Phases) Get(n int) PhaseRecord {
	if p.shape == shapeList && n >= 1 && n <= len(p.list) {
		return p.list[n-1]
	}
	if rec, ok := p.byKey[strconv.Itoa(n)]; ok {
		return rec
	}
	return PhaseRecord{}
}

// Set stores the record for phase n in whichever shape the set already uses.
func (p *Phases) Set(n int, rec PhaseRecord) error {
	if n < 1 || n > PhaseCount {
		return fmt.Errorf("phase %d out of range 1..%d", n, PhaseCount)
	}
	if p.shape == shapeList {
		for len(p.list) < n {
			p.list = append(p.list, PhaseRecord{})
		}
		p.list[n-1] = rec
		return nil
	}
	if p.byKey == nil {
		p.byKey = map[string]PhaseRecord{}
	}
	p.byKey[strconv.Itoa(n)] = rec
	return nil
}

// Map returns the canonical keyed view of phases 1..PhaseCount.
func (p Phases) Map() map[string]PhaseRecord {
	out := make(map[string]PhaseRecord, PhaseCount)
	for n := 1; n <= PhaseCount; n++ {
		out[strconv.Itoa(n)] = p.Get(n)
	}
	return out
}

func (p Phases) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

func (p *Phases) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*p = NewPhases()
		return nil
	case trimmed[0] == '[':
		var list []PhaseRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("decode phase list: %w", err)
		}
		*p = PhasesFromList(list)
		return nil
	case trimmed[0] == '{':
		byKey := map[string]PhaseRecord{}
		if err := json.Unmarshal(trimmed, &byKey); err != nil {
			return fmt.Errorf("decode phase map: %w", err)
		}
		*p = Phases{shape: shapeMap, byKey: byKey}
		return nil
	default:
		return fmt.Errorf("phases must be a list or an object")
	}
}
