package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Stats holds aggregate statistics about a capture.
type Stats struct {
	TotalEvents int
	ByLayer     map[log.Layer]int
	ByCategory  map[log.Category]int
	ByDirection map[log.Direction]int
	ByType      map[wire.PacketType]int
	ErrorsBy    map[string]int
	Links       map[string]*LinkStats
	Start, End  time.Time
}

// LinkStats summarizes one link.
type LinkStats struct {
	Role      log.Role
	Port      string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Versions  []string

	// LastSync is the final clock sync event, if any.
	LastSync *log.ClockSyncEvent
}

// Collect aggregates every event in path.
func Collect(path string) (*Stats, error) {
	s := &Stats{
		ByLayer:     make(map[log.Layer]int),
		ByCategory:  make(map[log.Category]int),
		ByDirection: make(map[log.Direction]int),
		ByType:      make(map[wire.PacketType]int),
		ErrorsBy:    make(map[string]int),
		Links:       make(map[string]*LinkStats),
	}
	err := eachEvent(path, log.Filter{}, func(e log.Event) error {
		s.add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stats) add(e log.Event) {
	s.TotalEvents++
	s.ByLayer[e.Layer]++
	s.ByCategory[e.Category]++
	s.ByDirection[e.Direction]++

	if s.Start.IsZero() || e.Timestamp.Before(s.Start) {
		s.Start = e.Timestamp
	}
	if e.Timestamp.After(s.End) {
		s.End = e.Timestamp
	}

	ls, ok := s.Links[e.LinkID]
	if !ok {
		ls = &LinkStats{Role: e.LocalRole, Port: e.Port, FirstSeen: e.Timestamp}
		s.Links[e.LinkID] = ls
	}
	ls.Events++
	if e.Timestamp.After(ls.LastSeen) {
		ls.LastSeen = e.Timestamp
	}

	switch {
	case e.Envelope != nil:
		s.ByType[wire.PacketType(e.Envelope.Type)]++
	case e.Error != nil:
		class := e.Error.Class
		if class == "" {
			class = "OTHER"
		}
		s.ErrorsBy[class]++
	case e.ClockSync != nil:
		cs := *e.ClockSync
		ls.LastSync = &cs
	case e.StateChange != nil && e.StateChange.Entity == log.StateEntityVersion:
		ls.Versions = append(ls.Versions, e.StateChange.NewState)
	}
}

// RunStats prints statistics for path.
func RunStats(path string, w io.Writer) error {
	s, err := Collect(path)
	if err != nil {
		return err
	}
	s.Print(w)
	return nil
}

// Print writes the statistics report.
func (s *Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "Events:   %d\n", s.TotalEvents)
	if s.TotalEvents == 0 {
		return
	}
	fmt.Fprintf(w, "Span:     %s .. %s (%s)\n",
		s.Start.UTC().Format(timeLayout), s.End.UTC().Format(timeLayout), s.End.Sub(s.Start).Round(time.Millisecond))

	fmt.Fprintln(w, "\nBy direction:")
	for _, d := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		fmt.Fprintf(w, "  %-10s %d\n", d, s.ByDirection[d])
	}

	fmt.Fprintln(w, "\nBy layer:")
	for l := log.LayerCodec; l <= log.LayerSync; l++ {
		if n := s.ByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", l, n)
		}
	}

	if len(s.ByType) > 0 {
		fmt.Fprintln(w, "\nBy packet type:")
		types := make([]wire.PacketType, 0, len(s.ByType))
		for t := range s.ByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			fmt.Fprintf(w, "  %-20s %d\n", t, s.ByType[t])
		}
	}

	if len(s.ErrorsBy) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, class := range sortedKeys(s.ErrorsBy) {
			fmt.Fprintf(w, "  %-20s %d\n", class, s.ErrorsBy[class])
		}
	}

	fmt.Fprintf(w, "\nLinks: %d\n", len(s.Links))
	for _, id := range sortedKeys(s.Links) {
		ls := s.Links[id]
		fmt.Fprintf(w, "  %s %s %s events=%d duration=%s\n",
			shortenID(id), ls.Role, ls.Port, ls.Events, ls.LastSeen.Sub(ls.FirstSeen).Round(time.Millisecond))
		if len(ls.Versions) > 0 {
			fmt.Fprintf(w, "    versions: %v\n", ls.Versions)
		}
		if ls.LastSync != nil {
			fmt.Fprintf(w, "    clock: %s offset=%dus drift=%.2fus/s\n",
				ls.LastSync.State, ls.LastSync.OffsetUs, ls.LastSync.DriftUsPerS)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
