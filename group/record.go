package group

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/cases"
)

// Member is one account listed in a group record.
type Member struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

// Record is the local view of one group. It is mutated by local operations
// and by invite, join and leave events whether or not this peer is a member.
type Record struct {
	ID      string
	Name    string
	Creator string

	participants mapset.Set[string]
	invitations  mapset.Set[string]
	names        map[string]string
}

// Snapshot is the persisted form of a Record.
type Snapshot struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Creator      string   `json:"creator"`
	Participants []Member `json:"participants"`
	Invitations  []Member `json:"invitations"`
}

// DeriveID computes the group id every peer derives for a creator and group
// name, without coordination: the creator's account id joined to the
// normalized name, e.g. "alice_study".
func DeriveID(creator, name string) string {
	return creator + "_" + Normalize(name)
}

// ValidID reports whether groupID is the id DeriveID gives for creator and
// name. Account ids never contain "_", so the first "_" of a valid id always
// ends the creator.
func ValidID(groupID, creator, name string) bool {
	if creator == "" || strings.Contains(creator, "_") {
		return false
	}
	return groupID == DeriveID(creator, name)
}

// Normalize case-folds a group name and collapses inner whitespace to "-".
func Normalize(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(folded), "-")
}

func newRecord(id, name, creator string) *Record {
	return &Record{
		ID:           id,
		Name:         name,
		Creator:      creator,
		participants: mapset.NewThreadUnsafeSet[string](),
		invitations:  mapset.NewThreadUnsafeSet[string](),
		names:        make(map[string]string),
	}
}

// IsParticipant reports whether accountID is a participant.
func (r *Record) IsParticipant(accountID string) bool {
	return r.participants.Contains(accountID)
}

// IsInvited reports whether accountID holds a pending invitation.
func (r *Record) IsInvited(accountID string) bool {
	return r.invitations.Contains(accountID)
}

// Empty reports whether both the participant and invitation sets are empty.
func (r *Record) Empty() bool {
	return r.participants.Cardinality() == 0 && r.invitations.Cardinality() == 0
}

// Participants returns the participants ordered by account id.
func (r *Record) Participants() []Member {
	return r.members(r.participants)
}

// Invitations returns the invited accounts ordered by account id.
func (r *Record) Invitations() []Member {
	return r.members(r.invitations)
}

// DisplayName returns the last known display name of accountID.
func (r *Record) DisplayName(accountID string) string {
	if name, ok := r.names[accountID]; ok && name != "" {
		return name
	}
	return accountID
}

// Snapshot returns a detached copy suitable for persisting or rendering.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		ID:           r.ID,
		Name:         r.Name,
		Creator:      r.Creator,
		Participants: r.Participants(),
		Invitations:  r.Invitations(),
	}
}

func (r *Record) members(set mapset.Set[string]) []Member {
	ids := set.ToSlice()
	sort.Strings(ids)
	result := make([]Member, 0, len(ids))
	for _, id := range ids {
		result = append(result, Member{AccountID: id, DisplayName: r.DisplayName(id)})
	}
	return result
}

func (r *Record) remember(accountID, displayName string) {
	if displayName != "" {
		r.names[accountID] = displayName
	}
}

// addParticipant moves accountID into the participant set.
func (r *Record) addParticipant(accountID, displayName string) bool {
	r.remember(accountID, displayName)
	r.invitations.Remove(accountID)
	return r.participants.Add(accountID)
}

// addInvitation records an invitation unless accountID already participates.
func (r *Record) addInvitation(accountID, displayName string) bool {
	r.remember(accountID, displayName)
	if r.participants.Contains(accountID) {
		return false
	}
	return r.invitations.Add(accountID)
}

// remove drops accountID from both sets and reports whether it was present.
func (r *Record) remove(accountID string) bool {
	present := r.participants.Contains(accountID) || r.invitations.Contains(accountID)
	r.participants.Remove(accountID)
	r.invitations.Remove(accountID)
	return present
}

func fromSnapshot(s Snapshot) *Record {
	rec := newRecord(s.ID, s.Name, s.Creator)
	for _, m := range s.Participants {
		rec.addParticipant(m.AccountID, m.DisplayName)
	}
	for _, m := range s.Invitations {
		rec.addInvitation(m.AccountID, m.DisplayName)
	}
	return rec
}
