package group

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/opd-ai/meshchat/limits"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateName indicates self already owns a group with the same normalized name.
	ErrDuplicateName = errors.New("duplicate group name")
	// ErrGroupNotFound indicates no group where self participates or is invited matches.
	ErrGroupNotFound = errors.New("group not found")
	// ErrAmbiguousGroup indicates several groups match a name; use the group id.
	ErrAmbiguousGroup = errors.New("ambiguous group name")
	// ErrNotParticipant indicates self is not a participant of the group.
	ErrNotParticipant = errors.New("not a participant")
	// ErrNotInvited indicates self holds no pending invitation to the group.
	ErrNotInvited = errors.New("no pending invitation")
	// ErrAlreadyParticipant indicates the target already participates.
	ErrAlreadyParticipant = errors.New("already a participant")
	// ErrAlreadyInvited indicates the target already holds an invitation.
	ErrAlreadyInvited = errors.New("already invited")
	// ErrIDConflict indicates a group of another creator already holds the derived id.
	ErrIDConflict = errors.New("group id held by another creator")
)

// Change describes the effect of an inbound group event on the local record.
type Change struct {
	// Applied is true when the event changed the record.
	Applied bool
	// Created is true when the event constructed the record.
	Created bool
	// Deleted is true when the record was garbage-collected.
	Deleted bool
	// SelfParticipant is true when self participates after the event.
	SelfParticipant bool
	// Record is a snapshot taken after the event; zero when the group is unknown.
	Record Snapshot
}

// Directory holds every group record known to the local peer.
// A Directory is not safe for concurrent use; the session's event loop owns it.
type Directory struct {
	selfAccountID string
	selfName      string
	groups        map[string]*Record
}

// NewDirectory creates an empty group directory for self.
func NewDirectory(selfAccountID, selfName string) *Directory {
	return &Directory{
		selfAccountID: selfAccountID,
		selfName:      selfName,
		groups:        make(map[string]*Record),
	}
}

// Create makes a new group owned by self with self as the only participant.
func (d *Directory) Create(name string) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if err := limits.ValidateName(name); err != nil {
		return Snapshot{}, fmt.Errorf("invalid group name: %w", err)
	}

	id := DeriveID(d.selfAccountID, name)
	if err := d.validateUniqueName(id, name); err != nil {
		return Snapshot{}, err
	}

	rec := newRecord(id, name, d.selfAccountID)
	rec.addParticipant(d.selfAccountID, d.selfName)
	d.groups[id] = rec

	logrus.WithFields(logrus.Fields{
		"function": "Create",
		"group_id": id,
		"name":     name,
	}).Info("Group created")

	return rec.Snapshot(), nil
}

// validateUniqueName rejects a name self already uses, compared case-insensitively.
// Groups created by other accounts never count against self's names.
func (d *Directory) validateUniqueName(id, name string) error {
	if rec, exists := d.groups[id]; exists && rec.Creator != d.selfAccountID {
		return fmt.Errorf("%w: %s created by %s", ErrIDConflict, id, rec.Creator)
	}
	normalized := Normalize(name)
	for _, rec := range d.groups {
		if rec.Creator == d.selfAccountID && Normalize(rec.Name) == normalized {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return nil
}

// Resolve finds a group by id or by name among the groups where self is a
// participant or an invitee.
func (d *Directory) Resolve(ref string) (*Record, error) {
	if rec, ok := d.groups[ref]; ok && d.involvesSelf(rec) {
		return rec, nil
	}

	normalized := Normalize(ref)
	var matches []*Record
	for _, rec := range d.groups {
		if d.involvesSelf(rec) && Normalize(rec.Name) == normalized {
			matches = append(matches, rec)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, 0, len(matches))
		for _, rec := range matches {
			ids = append(ids, rec.ID)
		}
		sort.Strings(ids)
		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousGroup, ref, strings.Join(ids, ", "))
	}
}

func (d *Directory) involvesSelf(rec *Record) bool {
	return rec.IsParticipant(d.selfAccountID) || rec.IsInvited(d.selfAccountID)
}

// RequireParticipant resolves a group and checks that self participates.
func (d *Directory) RequireParticipant(ref string) (*Record, error) {
	rec, err := d.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if !rec.IsParticipant(d.selfAccountID) {
		return nil, fmt.Errorf("%w: %s", ErrNotParticipant, rec.Name)
	}
	return rec, nil
}

// Invite adds target to the invitations of a group self participates in.
// Presence and friendship of the target are checked by the caller.
func (d *Directory) Invite(ref, targetAccountID, targetName string) (Snapshot, error) {
	rec, err := d.RequireParticipant(ref)
	if err != nil {
		return Snapshot{}, err
	}
	if err := validateInvitationEligibility(rec, targetAccountID); err != nil {
		return Snapshot{}, err
	}

	rec.addInvitation(targetAccountID, targetName)

	logrus.WithFields(logrus.Fields{
		"function": "Invite",
		"group_id": rec.ID,
		"target":   targetAccountID,
	}).Info("Invitation recorded")

	return rec.Snapshot(), nil
}

// validateInvitationEligibility checks if the target can be invited.
func validateInvitationEligibility(rec *Record, targetAccountID string) error {
	if rec.IsParticipant(targetAccountID) {
		return fmt.Errorf("%w: %s", ErrAlreadyParticipant, targetAccountID)
	}
	if rec.IsInvited(targetAccountID) {
		return fmt.Errorf("%w: %s", ErrAlreadyInvited, targetAccountID)
	}
	return nil
}

// Accept moves self from the invitations to the participants of a group.
func (d *Directory) Accept(ref string) (Snapshot, error) {
	rec, err := d.Resolve(ref)
	if err != nil {
		return Snapshot{}, err
	}
	if !rec.IsInvited(d.selfAccountID) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotInvited, rec.Name)
	}

	rec.addParticipant(d.selfAccountID, d.selfName)

	logrus.WithFields(logrus.Fields{
		"function": "Accept",
		"group_id": rec.ID,
	}).Info("Joined group")

	return rec.Snapshot(), nil
}

// Reject drops self's invitation and deletes the record once it is empty.
// It reports whether the record was deleted.
func (d *Directory) Reject(ref string) (Snapshot, bool, error) {
	rec, err := d.Resolve(ref)
	if err != nil {
		return Snapshot{}, false, err
	}
	if !rec.IsInvited(d.selfAccountID) {
		return Snapshot{}, false, fmt.Errorf("%w: %s", ErrNotInvited, rec.Name)
	}

	rec.invitations.Remove(d.selfAccountID)
	return rec.Snapshot(), d.collect(rec), nil
}

// Leave removes self from the participants. The returned snapshot lists the
// remaining members; the record is deleted once it is empty.
func (d *Directory) Leave(ref string) (Snapshot, bool, error) {
	rec, err := d.RequireParticipant(ref)
	if err != nil {
		return Snapshot{}, false, err
	}

	rec.remove(d.selfAccountID)

	logrus.WithFields(logrus.Fields{
		"function":     "Leave",
		"group_id":     rec.ID,
		"participants": rec.participants.Cardinality(),
	}).Info("Left group")

	return rec.Snapshot(), d.collect(rec), nil
}

// collect deletes an empty record and reports whether it did.
func (d *Directory) collect(rec *Record) bool {
	if !rec.Empty() {
		return false
	}
	delete(d.groups, rec.ID)

	logrus.WithFields(logrus.Fields{
		"function": "collect",
		"group_id": rec.ID,
	}).Debug("Empty group record removed")

	return true
}

// ApplyInvite applies an invite event. An unknown group is constructed only
// when self is the invitee, with the inviter as its sole known participant.
// Invites whose id does not derive from their creator and name are ignored.
func (d *Directory) ApplyInvite(groupID, groupName, creator, inviter, inviterName, invitee, inviteeName string) Change {
	if !ValidID(groupID, creator, groupName) {
		logrus.WithFields(logrus.Fields{
			"function": "ApplyInvite",
			"group_id": groupID,
			"creator":  creator,
		}).Warn("Ignoring invite with inconsistent group id")
		return Change{}
	}

	rec, ok := d.groups[groupID]
	if !ok {
		if invitee != d.selfAccountID {
			return Change{}
		}
		rec = newRecord(groupID, groupName, creator)
		rec.addParticipant(inviter, inviterName)
		rec.addInvitation(invitee, inviteeName)
		d.groups[groupID] = rec
		return d.change(rec, true, true, false)
	}

	applied := false
	if inviter != "" && rec.addParticipant(inviter, inviterName) {
		applied = true
	}
	if rec.addInvitation(invitee, inviteeName) {
		applied = true
	}
	return d.change(rec, applied, false, false)
}

// ApplyJoin applies a join event: the account becomes a participant.
func (d *Directory) ApplyJoin(groupID, accountID, displayName string) Change {
	rec, ok := d.groups[groupID]
	if !ok {
		return Change{}
	}
	applied := rec.addParticipant(accountID, displayName)
	return d.change(rec, applied, false, false)
}

// ApplyLeave applies a leave event and garbage-collects an emptied record.
func (d *Directory) ApplyLeave(groupID, accountID string) Change {
	rec, ok := d.groups[groupID]
	if !ok {
		return Change{}
	}
	applied := rec.remove(accountID)
	deleted := d.collect(rec)
	return d.change(rec, applied, false, deleted)
}

func (d *Directory) change(rec *Record, applied, created, deleted bool) Change {
	return Change{
		Applied:         applied,
		Created:         created,
		Deleted:         deleted,
		SelfParticipant: rec.IsParticipant(d.selfAccountID),
		Record:          rec.Snapshot(),
	}
}

// Lookup returns a group by id regardless of local membership.
func (d *Directory) Lookup(groupID string) (Snapshot, bool) {
	rec, ok := d.groups[groupID]
	if !ok {
		return Snapshot{}, false
	}
	return rec.Snapshot(), true
}

// IsParticipant reports whether self participates in groupID.
func (d *Directory) IsParticipant(groupID string) bool {
	rec, ok := d.groups[groupID]
	return ok && rec.IsParticipant(d.selfAccountID)
}

// Groups returns snapshots of every known group ordered by id.
func (d *Directory) Groups() []Snapshot {
	result := make([]Snapshot, 0, len(d.groups))
	for _, rec := range d.groups {
		result = append(result, rec.Snapshot())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Restore replaces the directory contents with persisted snapshots.
func (d *Directory) Restore(snapshots []Snapshot) {
	d.groups = make(map[string]*Record, len(snapshots))
	for _, s := range snapshots {
		if s.ID == "" {
			continue
		}
		rec := fromSnapshot(s)
		if rec.Empty() {
			continue
		}
		d.groups[s.ID] = rec
	}
}
