package entity

import (
	"sort"

	"movie-ticket-booking/pkg/apperror"
)

// OccupancyMap maps a seat label to the id of the user holding it.
// A label is present iff exactly one user holds it.
type OccupancyMap map[string]string

// Conflicts returns the requested labels that are already held, sorted
func (m OccupancyMap) Conflicts(labels []string) []string {
	var taken []string
	for _, l := range labels {
		if _, ok := m[l]; ok {
			taken = append(taken, l)
		}
	}
	sort.Strings(taken)
	return taken
}

// Claim marks all labels as held by userID, or nothing if any is taken
func (m OccupancyMap) Claim(labels []string, userID string) error {
	if taken := m.Conflicts(labels); len(taken) > 0 {
		return apperror.Conflict(taken, "seats already booked: %v", taken)
	}
	for _, l := range labels {
		m[l] = userID
	}
	return nil
}

// Release removes the labels held by userID and returns the ones removed.
// Labels held by another user are left untouched.
func (m OccupancyMap) Release(labels []string, userID string) []string {
	var released []string
	for _, l := range labels {
		if holder, ok := m[l]; ok && holder == userID {
			delete(m, l)
			released = append(released, l)
		}
	}
	return released
}

// Labels returns the occupied labels in sorted order
func (m OccupancyMap) Labels() []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (m OccupancyMap) Clone() OccupancyMap {
	out := make(OccupancyMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
