// Package presence tracks which accounts are currently reachable.
//
// The Directory maps transient network identities, valid for one process
// lifetime, to the durable account ids announced in presence beacons. The
// first beacon from an unknown network identity is the only absent→present
// transition; repeated beacons are no-ops. That transition is what triggers
// delivery-queue flushes, so periodic re-announcement never causes a flush
// storm.
//
// A Directory is not safe for concurrent use. It is owned by the session's
// event loop.
package presence

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeProvider abstracts time so tests can control beacon timestamps.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Entry is one reachable peer process.
type Entry struct {
	NetworkID   string
	AccountID   string
	DisplayName string
	SeenAt      time.Time
}

// Directory is the online-set of the local peer.
type Directory struct {
	selfNetworkID string
	entries       map[string]*Entry
	timeProvider  TimeProvider
}

// NewDirectory creates an empty directory for the peer identified by selfNetworkID.
func NewDirectory(selfNetworkID string) *Directory {
	return NewDirectoryWithTimeProvider(selfNetworkID, DefaultTimeProvider{})
}

// NewDirectoryWithTimeProvider creates a directory with a custom time provider.
func NewDirectoryWithTimeProvider(selfNetworkID string, tp TimeProvider) *Directory {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	return &Directory{
		selfNetworkID: selfNetworkID,
		entries:       make(map[string]*Entry),
		timeProvider:  tp,
	}
}

// SelfNetworkID returns the network identity of the local process.
func (d *Directory) SelfNetworkID() string {
	return d.selfNetworkID
}

// Observe records a presence beacon. It returns true only when networkID was
// not yet recorded, which is the absent→present transition. Beacons from self
// and from already-known identities change nothing.
func (d *Directory) Observe(networkID, accountID, displayName string) bool {
	if networkID == "" || accountID == "" || networkID == d.selfNetworkID {
		return false
	}
	if _, known := d.entries[networkID]; known {
		return false
	}

	d.entries[networkID] = &Entry{
		NetworkID:   networkID,
		AccountID:   accountID,
		DisplayName: displayName,
		SeenAt:      d.timeProvider.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Observe",
		"network_id":   networkID,
		"account_id":   accountID,
		"display_name": displayName,
	}).Info("Peer came online")

	return true
}

// Remove forgets a network identity whose link went down and returns the
// account it was bound to, if any.
func (d *Directory) Remove(networkID string) (string, bool) {
	entry, ok := d.entries[networkID]
	if !ok {
		return "", false
	}
	delete(d.entries, networkID)

	logrus.WithFields(logrus.Fields{
		"function":   "Remove",
		"network_id": networkID,
		"account_id": entry.AccountID,
	}).Info("Peer went offline")

	return entry.AccountID, true
}

// IsOnline reports whether any reachable process is bound to accountID.
func (d *Directory) IsOnline(accountID string) bool {
	for _, entry := range d.entries {
		if entry.AccountID == accountID {
			return true
		}
	}
	return false
}

// Lookup resolves an online peer by account id, falling back to a
// case-insensitive display name match.
func (d *Directory) Lookup(target string) (Entry, bool) {
	for _, entry := range d.entries {
		if entry.AccountID == target {
			return *entry, true
		}
	}
	for _, entry := range d.entries {
		if strings.EqualFold(entry.DisplayName, target) {
			return *entry, true
		}
	}
	return Entry{}, false
}

// Online returns a snapshot of the online-set ordered by account id.
func (d *Directory) Online() []Entry {
	result := make([]Entry, 0, len(d.entries))
	for _, entry := range d.entries {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AccountID == result[j].AccountID {
			return result[i].NetworkID < result[j].NetworkID
		}
		return result[i].AccountID < result[j].AccountID
	})
	return result
}

// Len returns the number of reachable processes.
func (d *Directory) Len() int {
	return len(d.entries)
}
